package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Recover turns a panic in the calling goroutine into a logged error and
// runs onPanic, if set. It must be deferred directly.
func Recover(id string, onPanic func(p any)) {
	p := recover()
	if p == nil {
		return
	}
	log.WithFields(log.Fields{
		"job":    id,
		"panic":  fmt.Sprint(p),
		"source": identifyPanic(),
	}).Error("recovered from panic")
	if onPanic != nil {
		onPanic(p)
	}
}

// GoRecoverable runs f in the current goroutine, restarting it in a new one
// after a panic until maxPanics is exhausted. Negative maxPanics means no limit.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf(`job "%s" panics with message: %s, %s`, id, err, identifyPanic())
			if maxPanics == 0 {
				log.Fatalf(`panics limit exceeded for job "%s", exiting`, id)
			}
			if maxPanics > 0 {
				maxPanics--
			}
			log.Debugf(`recovering job "%s", panics left: %d`, id, maxPanics)
			go GoRecoverable(maxPanics, id, f)
		}
	}()
	f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(4, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
