package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/graphcache/internal/config"
	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/schema"
)

// LoadError is a failure to load a command input, tagged with the error
// code reported to the user.
type LoadError struct {
	Code string
	Err  error
}

func (e *LoadError) Error() string {
	return e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadSchema compiles a schema from a single .cue file or from the CUE
// package in a directory.
func LoadSchema(path string) (*schema.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Err: fmt.Errorf("schema not found: %s", path)}
	}

	var desc *schema.Descriptor
	if info.IsDir() {
		desc, err = loadSchemaDir(path)
	} else {
		desc, err = schema.LoadFile(path)
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &LoadError{Code: ErrCodeSchema, Err: err}
	}
	return desc, nil
}

func loadSchemaDir(dir string) (*schema.Descriptor, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, &LoadError{Code: ErrCodeNotFound, Err: fmt.Errorf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", err)
	}
	return schema.Compile(cuecontext.New().BuildInstance(instances[0]))
}

// LoadConfig reads the configuration file, or returns the defaults when
// path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Err: fmt.Errorf("config not found: %s", path)}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Err: err}
	}
	return cfg, nil
}

// LoadParams decodes a JSON object of operation variables. An empty string
// means no variables.
func LoadParams(raw string) (ir.Object, error) {
	if raw == "" {
		return nil, nil
	}
	params, err := ir.DecodeObject([]byte(raw))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInput, Err: fmt.Errorf("invalid --params: %w", err)}
	}
	return params, nil
}

// loadError reports err through the formatter with its load code and
// returns a command error.
func loadError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	return f.Fail(ExitCommandError, code, err)
}

// slogLevelQuiet hides runtime logs unless --verbose is set.
const slogLevelQuiet = slog.LevelError + 4

// newLogger builds the command logger: text on w at the configured level,
// or debug when --verbose is set.
func newLogger(opts *RootOptions, w io.Writer, level slog.Level) *slog.Logger {
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
