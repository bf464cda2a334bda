package macro

import "fmt"

// Engine status sentinels. Any other value is a failure routed through the
// configured error policy.
const (
	StatusOK                = 1
	StatusUserAbort         = -101
	StatusNavigationTimeout = -802
	StatusPageTimeout       = -1330
)

// ErrorCodesURL documents the engine's return codes.
const ErrorCodesURL = "http://wiki.imacros.net/Error_and_Return_Codes"

// DescribeStatus returns a short label for a status code.
func DescribeStatus(code int) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusUserAbort:
		return "user abort"
	case StatusNavigationTimeout:
		return "navigation timeout"
	case StatusPageTimeout:
		return "page load timeout"
	default:
		return fmt.Sprintf("error %d", code)
	}
}
