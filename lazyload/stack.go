package lazyload

import (
	"runtime"
	"strings"
)

const (
	initialStackDepth = 64
	maxStackDepth     = 4096
)

// Frame is one entry of a captured call stack.
//
// DeclaringType is the fully qualified receiver type ("example.com/app/proxies.InvoiceProxy")
// and is empty for plain functions. Go does not record columns, so Column is
// always 0 for captured frames. Missing symbol information leaves the fields
// empty or zero.
type Frame struct {
	File          string
	Line          int
	Column        int
	DeclaringType string
	Method        string
}

// PackagePath returns the import path of the declaring type.
func (f Frame) PackagePath() string {
	if idx := strings.LastIndex(f.DeclaringType, "."); idx >= 0 {
		return f.DeclaringType[:idx]
	}
	return ""
}

// TypeName returns the unqualified declaring type name.
func (f Frame) TypeName() string {
	return f.DeclaringType[strings.LastIndex(f.DeclaringType, ".")+1:]
}

// StackTrace is a call stack ordered innermost frame first.
type StackTrace []Frame

// CaptureStack returns the stack of the calling goroutine. skip is the number
// of frames to omit above the caller of CaptureStack; inlined calls are
// reported as their own frames.
func CaptureStack(skip int) StackTrace {
	pcs := make([]uintptr, initialStackDepth)
	var n int
	for {
		n = runtime.Callers(skip+2, pcs)
		if n < len(pcs) || len(pcs) >= maxStackDepth {
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make(StackTrace, 0, n)
	for {
		f, more := frames.Next()
		declaring, method := SplitFunctionName(f.Function)
		stack = append(stack, Frame{
			File:          f.File,
			Line:          f.Line,
			DeclaringType: declaring,
			Method:        method,
		})
		if !more {
			break
		}
	}
	return stack
}

// SplitFunctionName splits a runtime function symbol into its qualified
// declaring type and method name.
//
//	example.com/app/proxies.(*InvoiceProxy).GetCustomer -> example.com/app/proxies.InvoiceProxy, GetCustomer
//	example.com/app/proxies.InvoiceProxy.GetNumber      -> example.com/app/proxies.InvoiceProxy, GetNumber
//	example.com/app/orm.(*Reference[...]).Get           -> example.com/app/orm.Reference, Get
//	example.com/app/orm.load                            -> "", load
//
// Closures keep their suffix in the method name ("GetCustomer.func1").
func SplitFunctionName(symbol string) (declaringType, method string) {
	if symbol == "" {
		return "", ""
	}
	symbol = strings.ReplaceAll(symbol, "[...]", "")

	dir := ""
	rest := symbol
	if idx := strings.LastIndex(symbol, "/"); idx >= 0 {
		dir, rest = symbol[:idx+1], symbol[idx+1:]
	}

	dot := strings.Index(rest, ".")
	if dot < 0 {
		return "", symbol
	}
	pkg, member := dir+rest[:dot], rest[dot+1:]

	if strings.HasPrefix(member, "(") {
		closing := strings.Index(member, ")")
		if closing < 0 || closing+2 > len(member) {
			return "", member
		}
		typ := strings.TrimPrefix(member[1:closing], "*")
		return pkg + "." + stripTypeParams(typ), member[closing+2:]
	}

	typ, m, found := strings.Cut(member, ".")
	if !found || isClosureName(m) {
		return "", member
	}
	return pkg + "." + stripTypeParams(typ), m
}

func stripTypeParams(typ string) string {
	if idx := strings.Index(typ, "["); idx >= 0 {
		return typ[:idx]
	}
	return typ
}

// isClosureName reports whether name is a compiler-generated closure or
// wrapper suffix such as func1, gowrap2 or deferwrap1.
func isClosureName(name string) bool {
	for _, prefix := range []string{"func", "gowrap", "deferwrap"} {
		if digits, ok := strings.CutPrefix(name, prefix); ok && digits != "" && strings.Trim(digits, "0123456789.") == "" {
			return true
		}
	}
	return false
}
