package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/parrot/core/internal/domain/resource"
	"github.com/parrot/core/internal/infrastructure/logger"
	"github.com/parrot/core/internal/ports"
)

// entryPoints is the fixed preference order of exported names probed in
// the conversion unit. The unit's author is not bound by any contract
// this system controls, so several spellings are tried.
var entryPoints = []string{
	"CompileMMLToHTML",
	"ConvertFile",
	"ConvertMMLToHTML",
	"Convert",
}

// contentEntryPoint is the single name retried with the document text
// instead of its path when every path-based call came up empty.
const contentEntryPoint = "ConvertMMLToHTML"

// stdoutVariants are the flag spellings tried, in order, when falling
// back to running the converter as a subprocess.
var stdoutVariants = [][]string{
	{"--stdout"},
	{"-"},
	{},
}

// errNoOutput marks a call that completed but produced nothing usable.
var errNoOutput = fmt.Errorf("entry point produced no output")

// ConverterService bridges to the externally supplied MML converter. It
// probes in-process entry points first, then the content-based call,
// then subprocess execution; the first strategy yielding non-empty HTML
// wins. It never mutates the source tree and never panics out.
type ConverterService struct {
	loader      ports.UnitLoader
	runner      ports.SubprocessRunner
	timeout     time.Duration
	logger      *logger.Logger
	conversions *prometheus.CounterVec
}

// NewConverterService creates a new converter service. conversions may
// be nil when metrics are disabled.
func NewConverterService(loader ports.UnitLoader, runner ports.SubprocessRunner, timeout time.Duration, logger *logger.Logger, conversions *prometheus.CounterVec) *ConverterService {
	return &ConverterService{
		loader:      loader,
		runner:      runner,
		timeout:     timeout,
		logger:      logger,
		conversions: conversions,
	}
}

// Convert produces the HTML for an MML source file. All failures
// collapse into an error wrapping resource.ErrConversionFailed.
func (s *ConverterService) Convert(ctx context.Context, mmlPath string) (string, error) {
	var attempted []string

	unit, err := s.loader.Load()
	if err != nil {
		attempted = append(attempted, "load")
		s.logger.LogConversionAttempt(mmlPath, "load", err)
	} else {
		if html, strategy, ok := s.convertInProcess(unit, mmlPath, &attempted); ok {
			s.observe(strategy, "success")
			return html, nil
		}
	}

	if html, strategy, ok := s.convertSubprocess(ctx, mmlPath, &attempted); ok {
		s.observe(strategy, "success")
		return html, nil
	}

	s.logger.LogConversionFailure(mmlPath, attempted)
	s.observe("exhausted", "failure")
	return "", fmt.Errorf("converting %s: %w", mmlPath, resource.ErrConversionFailed)
}

// convertInProcess walks the entry-point preference order, then the
// content-based fallback.
func (s *ConverterService) convertInProcess(unit ports.ConversionUnit, mmlPath string, attempted *[]string) (string, string, bool) {
	for _, name := range entryPoints {
		fn, err := unit.Lookup(name)
		if err != nil {
			continue
		}

		strategy := "entry:" + name
		*attempted = append(*attempted, strategy)
		html, err := s.callEntry(fn, mmlPath)
		if err != nil {
			s.logger.LogConversionAttempt(mmlPath, strategy, err)
			continue
		}
		return html, strategy, true
	}

	if fn, err := unit.Lookup(contentEntryPoint); err == nil {
		*attempted = append(*attempted, "content")
		html, err := s.callWithContent(fn, mmlPath)
		if err != nil {
			s.logger.LogConversionAttempt(mmlPath, "content", err)
		} else {
			return html, "content", true
		}
	}

	return "", "", false
}

// callEntry invokes one entry point: first as (inputPath, outputPath)
// with a scoped temporary file, then as (inputPath). A non-empty return
// value wins; otherwise non-empty temp-file content wins. The temp file
// is removed on every exit path.
func (s *ConverterService) callEntry(fn any, mmlPath string) (html string, err error) {
	tmp, err := os.CreateTemp("", "parrot-*.html")
	if err != nil {
		return "", fmt.Errorf("creating scratch output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	defer func() {
		if r := recover(); r != nil {
			html = ""
			err = fmt.Errorf("entry point panicked: %v", r)
		}
	}()

	out, matched, callErr := invokeTwoArg(fn, mmlPath, tmpPath)
	if !matched {
		out, matched, callErr = invokeOneArg(fn, mmlPath)
	}
	if !matched {
		return "", fmt.Errorf("no supported signature")
	}
	if callErr != nil {
		return "", callErr
	}

	if strings.TrimSpace(out) != "" {
		return out, nil
	}
	if data, rerr := os.ReadFile(tmpPath); rerr == nil && strings.TrimSpace(string(data)) != "" {
		return string(data), nil
	}
	return "", errNoOutput
}

// callWithContent feeds the document text to a content-based converter.
func (s *ConverterService) callWithContent(fn any, mmlPath string) (html string, err error) {
	data, err := os.ReadFile(mmlPath)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			html = ""
			err = fmt.Errorf("entry point panicked: %v", r)
		}
	}()

	out, matched, callErr := invokeOneArg(fn, string(data))
	if !matched {
		return "", fmt.Errorf("no supported signature")
	}
	if callErr != nil {
		return "", callErr
	}
	if strings.TrimSpace(out) == "" {
		return "", errNoOutput
	}
	return out, nil
}

// convertSubprocess runs the converter as a standalone program, trying
// each stdout flag variant under a bounded timeout. Exit 0 with
// non-empty stdout wins; stderr is kept for diagnostics only.
func (s *ConverterService) convertSubprocess(ctx context.Context, mmlPath string, attempted *[]string) (string, string, bool) {
	for _, variant := range stdoutVariants {
		strategy := "subprocess"
		if len(variant) > 0 {
			strategy = "subprocess:" + strings.Join(variant, " ")
		}
		*attempted = append(*attempted, strategy)

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		stdout, stderr, err := s.runner.Run(callCtx, append([]string{mmlPath}, variant...)...)
		cancel()

		if err != nil {
			if strings.TrimSpace(stderr) != "" {
				s.logger.Debugw("Converter subprocess stderr", "source", mmlPath, "strategy", strategy, "stderr", stderr)
			}
			s.logger.LogConversionAttempt(mmlPath, strategy, err)
			continue
		}
		if strings.TrimSpace(stdout) != "" {
			return stdout, strategy, true
		}
		s.logger.LogConversionAttempt(mmlPath, strategy, errNoOutput)
	}
	return "", "", false
}

func (s *ConverterService) observe(strategy, outcome string) {
	if s.conversions == nil {
		return
	}
	s.conversions.WithLabelValues(strategy, outcome).Inc()
}

// invokeTwoArg calls fn as (inputPath, outputPath) if it has one of the
// supported two-argument shapes. matched reports whether any shape fit.
func invokeTwoArg(fn any, input, output string) (result string, matched bool, err error) {
	switch f := fn.(type) {
	case func(string, string) (string, error):
		result, err = f(input, output)
		return result, true, err
	case func(string, string) string:
		return f(input, output), true, nil
	case func(string, string) error:
		return "", true, f(input, output)
	case func(string, string):
		f(input, output)
		return "", true, nil
	default:
		return "", false, nil
	}
}

// invokeOneArg calls fn as (input) if it has one of the supported
// single-argument shapes.
func invokeOneArg(fn any, input string) (result string, matched bool, err error) {
	switch f := fn.(type) {
	case func(string) (string, error):
		result, err = f(input)
		return result, true, err
	case func(string) string:
		return f(input), true, nil
	case func(string) error:
		return "", true, f(input)
	default:
		return "", false, nil
	}
}
