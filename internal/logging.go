package internal

import (
	"log"
	"os"
)

// InitLogging routes the standard logger to stdout with microsecond
// precision. Timestamps are UTC so log lines line up with snapshot and
// archive names.
func InitLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}
