// ABOUTME: Help listing for the command loop
// ABOUTME: Printed when an unbound key is pressed
package command

var helpLines = []string{
	"1-9    play preset source",
	"0      no more tests",
	"q      quit",
	"space  toggle pause",
	"p      print status",
	"s      start",
	"d      stop",
	"r      reset",
	"z      seek to start",
	"o      seek to one minute",
	"m      print metadata",
	"up/dn  seek +/- 60 seconds",
	"rt/lt  seek +/- 10 seconds",
}

func (l *Loop) printHelp(b byte) {
	l.log.Infof("Unknown key %q (0x%02x)", b, b)
	for _, line := range helpLines {
		l.log.Info(line)
	}
}
