package web

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>vzen</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; background: #111; color: #eee; font-family: -apple-system, "Segoe UI", sans-serif; }
        .app { max-width: 960px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: baseline; }
        h1 { font-size: 20px; margin: 8px 0; }
        .muted { color: #888; font-size: 13px; }
        .panel { background: #1a1a1a; border: 1px solid #2a2a2a; border-radius: 8px; padding: 12px; margin-top: 12px; }
        .stats { display: flex; gap: 24px; flex-wrap: wrap; }
        .stat-label { display: block; color: #888; font-size: 12px; text-transform: uppercase; }
        .stat-value { font-size: 22px; font-variant-numeric: tabular-nums; }
        #camera { width: 100%; background: #000; border-radius: 4px; min-height: 240px; }
        #events div { padding: 4px 0; border-bottom: 1px solid #222; font-size: 13px; }
        #events .kind { color: #5ac8fa; margin-right: 8px; }
        #state.running { color: #4cd964; }
        #state.stopped { color: #ff3b30; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <h1>👁 vzen</h1>
            <span class="muted" id="version"></span>
        </div>

        <div class="panel">
            <img id="camera" alt="annotated stream">
        </div>

        <div class="panel">
            <div class="stats">
                <div><span class="stat-label">State</span><span class="stat-value" id="state">--</span></div>
                <div><span class="stat-label">FPS</span><span class="stat-value" id="fps">--</span></div>
                <div><span class="stat-label">Frames</span><span class="stat-value" id="frames">--</span></div>
                <div><span class="stat-label">Faces</span><span class="stat-value" id="faces">--</span></div>
            </div>
        </div>

        <div class="panel">
            <h1>Events</h1>
            <div id="events"><p class="muted">No events yet.</p></div>
        </div>
    </div>

    <script>
        var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';

        function applyStatus(st) {
            var state = document.getElementById('state');
            state.textContent = st.loop_state;
            state.className = st.loop_state;
            document.getElementById('fps').textContent = st.fps_valid ? st.fps.toFixed(1) : '--';
            document.getElementById('frames').textContent = st.frames;
            document.getElementById('faces').textContent = st.faces;
            document.getElementById('version').textContent = st.service + ' ' + st.version;
        }

        function appendEvent(ev) {
            var list = document.getElementById('events');
            if (list.firstChild && list.firstChild.className === 'muted') {
                list.innerHTML = '';
            }
            var row = document.createElement('div');
            var kind = document.createElement('span');
            kind.className = 'kind';
            kind.textContent = ev.kind;
            row.appendChild(kind);
            row.appendChild(document.createTextNode(ev.message));
            list.insertBefore(row, list.firstChild);
            while (list.childNodes.length > 50) {
                list.removeChild(list.lastChild);
            }
        }

        function connectEvents() {
            var ws = new WebSocket(proto + location.host + '/ws/events');
            ws.onmessage = function (msg) {
                var env = JSON.parse(msg.data);
                if (env.type === 'status') {
                    applyStatus(env.status);
                } else if (env.type === 'event') {
                    appendEvent(env.event);
                }
            };
            ws.onclose = function () { setTimeout(connectEvents, 2000); };
        }

        function connectCamera() {
            var ws = new WebSocket(proto + location.host + '/ws/camera');
            ws.binaryType = 'blob';
            var img = document.getElementById('camera');
            var lastURL = null;
            ws.onmessage = function (msg) {
                var url = URL.createObjectURL(msg.data);
                img.src = url;
                if (lastURL) { URL.revokeObjectURL(lastURL); }
                lastURL = url;
            };
            ws.onclose = function () { setTimeout(connectCamera, 2000); };
        }

        connectEvents();
        connectCamera();
    </script>
</body>
</html>
`
