package browser

import (
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/atharvkhisti/WebReckon/internal/session"
)

// stealthScript masks the common automation fingerprints before any page
// script runs.
const stealthScript = `() => {
	Object.defineProperty(navigator, 'webdriver', {get: () => undefined});

	Object.defineProperty(navigator, 'plugins', {
		get: () => [
			{name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer'},
			{name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai'},
			{name: 'Native Client', filename: 'internal-nacl-plugin'}
		]
	});

	Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});

	if (window.navigator.permissions) {
		const query = window.navigator.permissions.query;
		window.navigator.permissions.query = (p) => (
			p.name === 'notifications' ?
				Promise.resolve({state: Notification.permission}) :
				query(p)
		);
	}

	if (!window.chrome) {
		window.chrome = {runtime: {}, loadTimes: function() {}, csi: function() {}, app: {}};
	}

	delete window.callPhantom;
	delete window._phantom;
	delete window.__nightmare;
}`

// lifecycleEvent maps a wait strategy to the page lifecycle event it waits
// for. WaitCommit needs no event.
func lifecycleEvent(w session.WaitStrategy) (proto.PageLifecycleEventName, bool) {
	switch w {
	case session.WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle, true
	case session.WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded, true
	case session.WaitLoad:
		return proto.PageLifecycleEventNameLoad, true
	default:
		return "", false
	}
}

// wantsResponse reports whether a hijacked request is replayed so its
// response can be captured. Static assets pass straight through.
func wantsResponse(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeMedia,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeStylesheet:
		return false
	}
	return true
}

func toNetworkHeaders(h map[string]string) proto.NetworkHeaders {
	out := make(proto.NetworkHeaders, len(h))
	for k, v := range h {
		out[k] = gson.New(v)
	}
	return out
}

func fromNetworkHeaders(h proto.NetworkHeaders) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.Str()
	}
	return out
}
