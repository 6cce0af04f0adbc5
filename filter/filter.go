package filter

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tcriess/lightspeed-rooms/globals"
)

const programCacheSize = 256

// The same handful of filter expressions is compiled over and over (one
// compile per broadcast otherwise), so compiled programs are kept in an LRU.
var programCache *lru.Cache[string, *vm.Program]

func init() {
	var err error
	programCache, err = lru.New[string, *vm.Program](programCacheSize)
	if err != nil {
		panic(err)
	}
}

// Compile returns the compiled program for expression, from cache if possible.
func Compile(expression string) (*vm.Program, error) {
	if prog, ok := programCache.Get(expression); ok {
		return prog, nil
	}
	prog, err := expr.Compile(expression, expr.Env(Env{}))
	if err != nil {
		return nil, err
	}
	programCache.Add(expression, prog)
	return prog, nil
}

// Run evaluates prog against env. A nil program passes everything; an
// evaluation error or a non-boolean result rejects the target.
func Run(prog *vm.Program, env Env) bool {
	if prog == nil {
		return true
	}
	res, err := expr.Run(prog, env)
	if err != nil {
		globals.AppLogger.Error("could not run filter", "error", err)
		return false
	}
	if bRes, ok := res.(bool); ok && bRes {
		return true
	}
	return false
}

// ExcludeSession builds the filter used for room broadcasts that skip the
// originating session (typing indicators, join/leave notifications).
func ExcludeSession(sessionId string) string {
	return fmt.Sprintf("Target.SessionId != %q", sessionId)
}
