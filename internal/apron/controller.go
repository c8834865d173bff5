package apron

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/parser"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// Operation names reported to the Observer.
const (
	OpList      = "list"
	OpDescribe  = "describe"
	OpSet       = "set"
	OpDiscovery = "discovery"
	OpRaw       = "raw"
)

// Controller is the command surface of the hub.
type Controller interface {
	// List returns the id, radio and name of every paired device.
	List(ctx context.Context) ([]parser.ListEntry, error)

	// Describe returns one device with its attributes.
	Describe(ctx context.Context, id uint32) (device.Device, error)

	// Set writes one attribute value.
	Set(ctx context.Context, id, attributeID uint32, value device.Value) error

	// StartDiscovery starts pairing mode on a radio.
	StartDiscovery(ctx context.Context, radio string) (process.Result, error)

	// Raw runs the tool with whitespace-separated arguments.
	Raw(ctx context.Context, command string) (process.Result, error)
}

// Runner executes the control tool. *process.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, args ...string) (process.Result, error)
}

// Observer receives the duration and outcome of every tool invocation.
type Observer interface {
	ObserveCommand(op string, d time.Duration, err error)
}

// Logger defines the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) ObserveCommand(string, time.Duration, error) {}

// Options configures an Aprontest controller.
type Options struct {
	// Runner executes the tool binary. Required.
	Runner Runner

	// Binary is the tool name as a user would type it. A raw command starting
	// with this word (or its base name) has it stripped. Defaults to "aprontest".
	Binary string

	// Radios lists the radios accepted by StartDiscovery.
	Radios []string

	Logger   Logger
	Observer Observer
}

// Aprontest drives the hub through the aprontest command line tool.
type Aprontest struct {
	runner   Runner
	binary   string
	radios   []string
	logger   Logger
	observer Observer
}

// New creates an Aprontest controller.
func New(opts Options) (*Aprontest, error) {
	if opts.Runner == nil {
		return nil, ErrNoRunner
	}
	if opts.Binary == "" {
		opts.Binary = "aprontest"
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &Aprontest{
		runner:   opts.Runner,
		binary:   opts.Binary,
		radios:   opts.Radios,
		logger:   opts.Logger,
		observer: opts.Observer,
	}, nil
}

func (a *Aprontest) run(ctx context.Context, op string, args ...string) (process.Result, error) {
	start := time.Now()
	res, err := a.runner.Run(ctx, args...)
	a.observer.ObserveCommand(op, time.Since(start), err)
	return res, err
}

// List runs "aprontest -l" and parses the device table.
func (a *Aprontest) List(ctx context.Context) ([]parser.ListEntry, error) {
	res, err := a.run(ctx, OpList, "-l")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	entries, warnings, err := parser.ParseList(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	a.logWarnings(0, warnings)
	return entries, nil
}

// Describe runs "aprontest -l -m <id>" and parses the attribute table.
func (a *Aprontest) Describe(ctx context.Context, id uint32) (device.Device, error) {
	res, err := a.run(ctx, OpDescribe, "-l", "-m", strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return device.Device{}, fmt.Errorf("describing device %d: %w", id, err)
	}

	d, warnings, err := parser.ParseDescribe(id, res.Stdout)
	if err != nil {
		return device.Device{}, fmt.Errorf("describing device %d: %w", id, err)
	}
	a.logWarnings(id, warnings)
	return d, nil
}

// Set runs "aprontest -u -m <id> -t <attribute> -v <value>".
func (a *Aprontest) Set(ctx context.Context, id, attributeID uint32, value device.Value) error {
	encoded, err := value.Encode()
	if err != nil {
		return fmt.Errorf("setting device %d attribute %d: %w", id, attributeID, err)
	}

	_, err = a.run(ctx, OpSet,
		"-u",
		"-m", strconv.FormatUint(uint64(id), 10),
		"-t", strconv.FormatUint(uint64(attributeID), 10),
		"-v", encoded,
	)
	if err != nil {
		return fmt.Errorf("setting device %d attribute %d: %w", id, attributeID, err)
	}

	a.logger.Info("attribute set", "device_id", id, "attribute_id", attributeID, "value", encoded)
	return nil
}

// StartDiscovery runs "aprontest -a -r <radio>".
func (a *Aprontest) StartDiscovery(ctx context.Context, radio string) (process.Result, error) {
	if !slices.Contains(a.radios, radio) {
		return process.Result{}, fmt.Errorf("%w: %q", ErrInvalidRadio, radio)
	}
	a.logger.Info("starting device discovery", "radio", radio)
	return a.run(ctx, OpDiscovery, "-a", "-r", radio)
}

// Raw runs the tool with the whitespace-separated words of command. A leading
// tool name is dropped so both "-l" and "aprontest -l" work.
func (a *Aprontest) Raw(ctx context.Context, command string) (process.Result, error) {
	args, err := SplitCommand(command, a.binary)
	if err != nil {
		return process.Result{}, err
	}
	a.logger.Info("running raw command", "args", args)
	return a.run(ctx, OpRaw, args...)
}

// SplitCommand splits command on whitespace and strips a leading binary name.
func SplitCommand(command, binary string) ([]string, error) {
	args := strings.Fields(command)
	if len(args) > 0 && (args[0] == binary || args[0] == filepath.Base(binary)) {
		args = args[1:]
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

func (a *Aprontest) logWarnings(id uint32, warnings []parser.Warning) {
	for _, w := range warnings {
		a.logger.Warn("skipped unparseable tool output",
			"device_id", id,
			"line", w.Line,
			"code", w.Code,
			"detail", w.Message,
		)
	}
}
