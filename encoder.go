package vcrefresh

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"
)

// InstructionEncoder writes a change instruction inline into the output.
type InstructionEncoder interface {
	Encode(w io.Writer, in Instruction) error
}

// DefaultScriptNamespace is the client object ScriptEncoder calls into.
const DefaultScriptNamespace = "vcrefresh"

// ScriptEncoder writes instructions as script elements calling
//
//	ns.scopeReplaced(scope)
//	ns.scopeChanged(scope, inserts, deletes)
//
// where inserts is a list of [after, name] pairs (after is null for the
// head) or null, and deletes a list of names or null. Arguments are JSON
// with HTML-sensitive characters escaped.
type ScriptEncoder struct {
	Namespace string
}

var scriptBufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

const maxPooledScriptBuf = 64 * 1024

func (s ScriptEncoder) Encode(w io.Writer, in Instruction) error {
	ns := s.Namespace
	if ns == "" {
		ns = DefaultScriptNamespace
	}
	buf := scriptBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= maxPooledScriptBuf {
			scriptBufPool.Put(buf)
		}
	}()

	buf.WriteString("<script>")
	buf.WriteString(ns)
	switch in.Kind {
	case ScopeReplaced:
		buf.WriteString(".scopeReplaced(")
		if err := appendJSON(buf, in.Scope); err != nil {
			return err
		}
	case ScopeChanged:
		buf.WriteString(".scopeChanged(")
		if err := appendJSON(buf, in.Scope); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := appendJSON(buf, in.Inserts); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := appendJSON(buf, in.Deletes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown instruction kind %q", in.Kind)
	}
	buf.WriteString(");</script>")
	_, err := w.Write(buf.Bytes())
	return err
}

func appendJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode instruction argument: %w", err)
	}
	buf.Write(b)
	return nil
}

// JSONLinesEncoder writes each instruction as one JSON object followed by a
// newline, for consumers that read instructions from a separate channel.
type JSONLinesEncoder struct{}

func (JSONLinesEncoder) Encode(w io.Writer, in Instruction) error {
	return json.NewEncoder(w).Encode(in)
}

// Recorder keeps every instruction it sees and forwards it to Next when
// Next is set. It is not safe for concurrent use.
type Recorder struct {
	Next         InstructionEncoder
	Instructions []Instruction
}

func (r *Recorder) Encode(w io.Writer, in Instruction) error {
	r.Instructions = append(r.Instructions, in)
	if r.Next == nil {
		return nil
	}
	return r.Next.Encode(w, in)
}

// Reset forgets the recorded instructions.
func (r *Recorder) Reset() { r.Instructions = r.Instructions[:0] }
