package evalengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (any, []string) {
	t.Helper()
	prog, err := Compile(src)
	require.NoError(t, err)

	var prints []string
	ip := NewInterp(nil, func(s string) { prints = append(prints, s) })
	val, err := ip.Run(context.Background(), NewEnv(nil), prog.Stmts)
	require.NoError(t, err)
	return val, prints
}

func TestArithmeticAndComparison(t *testing.T) {
	val, _ := run(t, `1 + 2 * 3`)
	assert.Equal(t, int64(7), val)

	val, _ = run(t, `(1 + 2) * 3`)
	assert.Equal(t, int64(9), val)

	val, _ = run(t, `1.5 + 2`)
	assert.Equal(t, 3.5, val)

	val, _ = run(t, `3 > 2 && 2 > 1`)
	assert.Equal(t, true, val)
}

func TestStringConcatAndLen(t *testing.T) {
	val, _ := run(t, `"foo" + "bar"`)
	assert.Equal(t, "foobar", val)

	val, _ = run(t, `len("hello")`)
	assert.Equal(t, int64(5), val)
}

func TestIfElseIf(t *testing.T) {
	src := `
x = 5
if x > 10 {
  y = "big"
} else if x > 3 {
  y = "medium"
} else {
  y = "small"
}
y
`
	val, _ := run(t, src)
	assert.Equal(t, "medium", val)
}

func TestForLoopAccumulates(t *testing.T) {
	src := `
total = 0
i = 0
for i < 5 {
  total = total + i
  i = i + 1
}
total
`
	val, _ := run(t, src)
	assert.Equal(t, int64(10), val)
}

func TestFunctionDeclWithDefaultArgsAndKeyword(t *testing.T) {
	src := `
fn greet(name, greeting: "hello") {
  return greeting + " " + name
}
greet(name: "world")
`
	val, _ := run(t, src)
	assert.Equal(t, "hello world", val)
}

func TestFunctionMissingArgumentErrors(t *testing.T) {
	prog, err := Compile(`
fn greet(name) {
  return name
}
greet()
`)
	require.NoError(t, err)
	ip := NewInterp(nil, nil)
	_, err = ip.Run(context.Background(), NewEnv(nil), prog.Stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument")
}

func TestListAndMapLiterals(t *testing.T) {
	val, _ := run(t, `[1, 2, 3][1]`)
	assert.Equal(t, int64(2), val)

	val, _ = run(t, `{"a": 1, "b": 2}.a`)
	assert.Equal(t, int64(1), val)
}

func TestPrintBuiltin(t *testing.T) {
	_, prints := run(t, `print("hi")`)
	require.Len(t, prints, 1)
	assert.Contains(t, prints[0], "hi")
}

type recordingRoot struct {
	calls [][]string
}

func (r *recordingRoot) Dispatch(ctx context.Context, path []string, args []any, kwargs map[string]any) (any, error) {
	r.calls = append(r.calls, path)
	return "ok", nil
}

func TestNamespaceDispatchFlattensSelectorChain(t *testing.T) {
	root := &recordingRoot{}
	prog, err := Compile(`tools.curl.get(url: "https://example.com")`)
	require.NoError(t, err)

	ip := NewInterp(map[string]NamespaceRoot{"tools": root}, nil)
	val, err := ip.Run(context.Background(), NewEnv(nil), prog.Stmts)
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	require.Len(t, root.calls, 1)
	assert.Equal(t, []string{"curl", "get"}, root.calls[0])
}

func TestAwaitOnAFutureBlocksUntilResolved(t *testing.T) {
	fut := NewFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		fut.Resolve(int64(7), nil)
	}()

	val, err := biAwait(context.Background(), NewInterp(nil, nil), []any{fut})
	require.NoError(t, err)
	assert.Equal(t, int64(7), val)
}

func TestAwaitOnANonFutureValueIsANoop(t *testing.T) {
	val, err := biAwait(context.Background(), NewInterp(nil, nil), []any{int64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), val)
}

func TestRunAwaitsATrackedFutureBeforeReturning(t *testing.T) {
	ip := NewInterp(nil, nil)
	fut := NewFuture()
	ip.TrackFuture(fut)

	resolved := make(chan struct{})
	go func() {
		time.Sleep(15 * time.Millisecond)
		fut.Resolve(nil, nil)
		close(resolved)
	}()

	started := time.Now()
	_, err := ip.Run(context.Background(), NewEnv(nil), nil)
	require.NoError(t, err)
	<-resolved
	assert.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
}

func TestTimeoutCancelsLoopBetweenIterations(t *testing.T) {
	prog, err := Compile(`
i = 0
for true {
  i = i + 1
}
i
`)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ip := NewInterp(nil, nil)
	_, err = ip.Run(ctx, NewEnv(nil), prog.Stmts)
	require.Error(t, err)
}
