// Package scaffold generates the skeleton of a new job type.
package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
)

const (
	DefaultPackage = "jobs"
	DefaultDir     = "internal/jobs"
)

var (
	ErrInvalidName = errors.New("job type name must be an exported Go identifier")
	ErrExists      = errors.New("file already exists")
)

var stub = template.Must(template.New("job").Parse(`package {{.Package}}

import (
	"context"

	"redis-job-worker/internal/job"
)

// {{.Type}}Class is the class name {{.Type}} jobs are dispatched under.
const {{.Type}}Class = "{{.Class}}"

// Register{{.Type}} adds {{.Type}} to reg.
func Register{{.Type}}(reg *job.Registry, opts ...job.Option) {
	reg.Register({{.Type}}Class, func() job.Handler { return &{{.Type}}{} }, opts...)
}

type {{.Type}} struct{}

func (h *{{.Type}}) Process(ctx context.Context, j *job.Job) error {
	return nil
}

func (h *{{.Type}}) OnSuccess(ctx context.Context, j *job.Job) {}

func (h *{{.Type}}) OnFail(ctx context.Context, j *job.Job, err error) {}

func (h *{{.Type}}) Dead(ctx context.Context, j *job.Job) {}
`))

// Result describes a generated file.
type Result struct {
	Path    string
	Type    string
	Package string
	Created bool // directory was created
}

// Render returns the formatted source of a job type named typeName.
func Render(typeName, pkg string) ([]byte, error) {
	if err := validate(typeName); err != nil {
		return nil, err
	}
	if pkg == "" {
		pkg = DefaultPackage
	}
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("scaffold: invalid package name %q", pkg)
	}

	var buf bytes.Buffer
	err := stub.Execute(&buf, struct{ Package, Type, Class string }{pkg, typeName, SnakeCase(typeName)})
	if err != nil {
		return nil, fmt.Errorf("scaffold: render: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("scaffold: format: %w", err)
	}
	return src, nil
}

// Write renders typeName into dir/<snake_name>.go. It creates dir when
// missing and never overwrites an existing file.
func Write(dir, typeName, pkg string) (Result, error) {
	if dir == "" {
		dir = DefaultDir
	}
	src, err := Render(typeName, pkg)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Path:    filepath.Join(dir, SnakeCase(typeName)+".go"),
		Type:    typeName,
		Package: pkg,
	}
	if res.Package == "" {
		res.Package = DefaultPackage
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("scaffold: create %s: %w", dir, err)
		}
		res.Created = true
	}

	f, err := os.OpenFile(res.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return Result{}, fmt.Errorf("scaffold: %s: %w", res.Path, ErrExists)
	}
	if err != nil {
		return Result{}, fmt.Errorf("scaffold: %w", err)
	}

	if err := writeAndClose(f, src); err != nil {
		_ = os.Remove(res.Path)
		return Result{}, fmt.Errorf("scaffold: write %s: %w", res.Path, err)
	}
	return res, nil
}

func writeAndClose(w io.WriteCloser, src []byte) error {
	_, err := w.Write(src)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func validate(name string) error {
	if !token.IsIdentifier(name) || !token.IsExported(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SnakeCase turns SendWelcomeEmail into send_welcome_email. Runs of
// capitals stay together: HTTPPing becomes http_ping.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
