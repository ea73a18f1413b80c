// Command sessionkernel is the child interpreter process the
// subprocess executor spawns: a long-lived kernel that receives
// bootstrap/execute/reset/close frames over stdio and evaluates agent
// code against a persistent namespace dict (spec.md §4.G.2, §4.H).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/kernelproto"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/namespace"
	"github.com/kagent-dev/codesession/internal/storage"
)

func main() {
	logger.Init()
	defer logger.Sync()

	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)

	k := &kernel{}
	for {
		line, err := in.ReadBytes('\n')
		if err != nil {
			return
		}
		var req kernelproto.Frame
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		resp := k.handle(req)
		respLine, _ := json.Marshal(resp)
		out.Write(respLine)
		out.Write([]byte{'\n'})
		out.Flush()
		if req.Method == kernelproto.MethodClose {
			return
		}
	}
}

type kernel struct {
	dict   *namespace.Dict
	interp *evalengine.Interp
	env    *evalengine.Env
	stdout strings.Builder
}

func (k *kernel) handle(req kernelproto.Frame) kernelproto.Frame {
	switch req.Method {
	case kernelproto.MethodBootstrap:
		return k.handleBootstrap(req)
	case kernelproto.MethodExecute:
		return k.handleExecute(req)
	case kernelproto.MethodReset:
		k.env = evalengine.NewEnv(nil)
		return kernelproto.Frame{ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
	case kernelproto.MethodClose:
		return kernelproto.Frame{ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
	default:
		return errFrame(req.ID, errs.KindInvalidRequest, "unknown method: "+req.Method)
	}
}

func (k *kernel) handleBootstrap(req kernelproto.Frame) kernelproto.Frame {
	var p kernelproto.BootstrapParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errFrame(req.ID, errs.KindInvalidRequest, err.Error())
	}
	access := storage.Access{}
	if p.StorageFileBasePath != "" {
		access.File = &storage.FileAccess{BasePath: p.StorageFileBasePath}
	}
	if p.StorageKVURL != "" {
		access.KV = &storage.KVAccess{ConnectionURL: p.StorageKVURL, Prefix: p.StorageKVPrefix}
	}

	dict, err := namespace.Bootstrap(context.Background(), access, p.ToolsPath, namespace.DepsConfig{
		MutationAllowed: func() bool { return p.DepsMutationAllowed },
	})
	if err != nil {
		return errFrame(req.ID, errs.KindOf(err), err.Error())
	}
	k.dict = dict
	k.interp = dict.NewInterp(func(s string) { k.stdout.WriteString(s) })
	k.env = evalengine.NewEnv(nil)
	return kernelproto.Frame{ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
}

func (k *kernel) handleExecute(req kernelproto.Frame) kernelproto.Frame {
	var p kernelproto.ExecuteParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errFrame(req.ID, errs.KindInvalidRequest, err.Error())
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if p.TimeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	k.stdout.Reset()
	result := kernelproto.ExecuteResult{}

	prog, err := evalengine.Compile(p.Code)
	if err != nil {
		result.Error = &kernelproto.ErrorInfo{Kind: "SyntaxError", Message: err.Error()}
		return resultFrame(req.ID, result)
	}

	val, err := k.interp.Run(ctx, k.env, prog.Stmts)
	result.Stdout = k.stdout.String()
	if err != nil {
		kind := "RuntimeError"
		if ctx.Err() != nil {
			kind = "Timeout"
		} else if ek := errs.KindOf(err); ek == errs.KindToolExecutionError || ek == errs.KindToolTimeout {
			kind = "ToolError"
		} else if ek := errs.KindOf(err); ek == errs.KindSkillError {
			kind = "SkillError"
		}
		result.Error = &kernelproto.ErrorInfo{Kind: kind, Message: err.Error()}
		return resultFrame(req.ID, result)
	}
	result.Value = val
	return resultFrame(req.ID, result)
}

func resultFrame(id string, result kernelproto.ExecuteResult) kernelproto.Frame {
	raw, _ := json.Marshal(result)
	return kernelproto.Frame{ID: id, Result: raw}
}

func errFrame(id string, kind errs.Kind, msg string) kernelproto.Frame {
	return kernelproto.Frame{ID: id, Error: msg, ErrorKind: string(kind)}
}
