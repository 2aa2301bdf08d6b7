package devserver

import "fmt"

// clientScript connects to the control port and either hot-swaps assets or reloads.
func clientScript(controlPort int) string {
	return fmt.Sprintf(`(() => {
  if (window.__SITEBUILDER_LR__) return;
  window.__SITEBUILDER_LR__ = true;
  const bust = (url) => { const u = new URL(url, location.href); u.searchParams.set('lr', Date.now()); return u.toString(); };
  const same = (a, b) => new URL(a, location.href).pathname === b;
  function inject(paths) {
    let swapped = 0;
    for (const p of paths) {
      document.querySelectorAll('link[rel="stylesheet"]').forEach((el) => { if (same(el.getAttribute('href'), p)) { el.href = bust(el.href); swapped++; } });
      document.querySelectorAll('img').forEach((el) => { if (same(el.getAttribute('src'), p)) { el.src = bust(el.src); swapped++; } });
    }
    return swapped;
  }
  function connect() {
    const es = new EventSource('http://' + location.hostname + ':%d/livereload');
    es.onmessage = (e) => {
      let msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      if (msg.kind === 'inject' && msg.paths && inject(msg.paths) > 0) { console.log('[sitebuilder] injected', msg.paths); return; }
      console.log('[sitebuilder] change detected, reloading');
      location.reload();
    };
    es.onerror = () => { console.warn('[sitebuilder] livereload error - retrying'); es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`, controlPort)
}
