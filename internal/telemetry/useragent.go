package telemetry

import "strings"

// ClientProfile is the coarse device classification stored with every
// telemetry event. Derived from the declared agent string only; it is a
// grouping key for dashboards, not an identity.
type ClientProfile struct {
	DeviceType string
	Browser    string
	OS         string
}

// ClassifyUserAgent buckets an agent string with ordered substring
// checks, first match wins. Anything unrecognized comes back "unknown".
func ClassifyUserAgent(ua string) ClientProfile {
	if ua == "" {
		return ClientProfile{DeviceType: "unknown", Browser: "unknown", OS: "unknown"}
	}

	return ClientProfile{
		DeviceType: classifyDevice(ua),
		Browser:    classifyBrowser(ua),
		OS:         classifyOS(ua),
	}
}

func classifyDevice(ua string) string {
	switch {
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		return "tablet"
	// Android tablets carry "Android" but drop the "Mobile" token.
	case strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile"):
		return "tablet"
	case strings.Contains(ua, "Mobi"):
		return "mobile"
	default:
		return "desktop"
	}
}

func classifyBrowser(ua string) string {
	// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
	switch {
	case strings.Contains(ua, "Edg/") || strings.Contains(ua, "Edge/"):
		return "Edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Chrome/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "MSIE") || strings.Contains(ua, "Trident/"):
		return "Internet Explorer"
	default:
		return "unknown"
	}
}

func classifyOS(ua string) string {
	// Android before Linux: Android agents carry "Linux" too.
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iOS"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X") || strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "unknown"
	}
}
