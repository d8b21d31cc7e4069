// Command wutag is the CLI front end over the root wutag package: a
// thin shell that parses flags, assembles a registry.Handle behind the
// requested encryption filter, and dispatches to internal/action.
//
// Grounded on cmd/cctool/main.go's shape: a flag.NewFlagSet with a
// subcommand table, SIGINT/SIGTERM cancellation via
// signal.Notify+context.WithCancel, and a goroutine running the chosen
// subcommand racing the parent context. Exit codes follow spec §6
// instead of cctool's own 0/1/2/99 scheme: 0 success, 1 command
// failure, 2 invalid usage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/wutag-go/wutag/internal/config"
	"github.com/wutag-go/wutag/internal/encrypt"
	"github.com/wutag-go/wutag/internal/registry"
	"github.com/wutag-go/wutag/internal/walker"
)

// globalFlags holds the flags that apply regardless of subcommand:
// registry path, PGP keyring, base directory, max depth, global vs local
// scope, regex/glob/fixed-string mode, case sensitivity, exclude
// patterns, extension filter, file-type filter, and log verbosity. There
// is no color flag.
type globalFlags struct {
	registryPath string
	gpgKeyring   string
	dir          string
	maxDepth     int
	global       bool

	mode          walker.Mode
	modeFlags     [2]*bool // [0]=regex, [1]=fixed-string; resolved into mode after Parse
	caseSensitive bool
	ignoreCase    bool
	exclude       stringList
	extPattern    string

	types struct {
		files, dirs, symlinks, executables, empty bool
	}

	verbosity int
}

// stringList accumulates repeated --exclude flags.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.registryPath, "registry", "", "path to the registry file (overrides WUTAG_REGISTRY)")
	fs.StringVar(&g.gpgKeyring, "gpg-keyring", "", "armored PGP keyring to encrypt the registry at rest")
	fs.StringVar(&g.dir, "dir", ".", "base directory for walker-scoped commands")
	fs.IntVar(&g.maxDepth, "max-depth", walker.DefaultMaxDepth, "maximum directory recursion depth")
	fs.BoolVar(&g.global, "global", false, "operate over the whole registry instead of walking dir")

	fs.BoolVar(&g.caseSensitive, "case-sensitive", false, "force case-sensitive pattern matching")
	fs.BoolVar(&g.ignoreCase, "ignore-case", false, "force case-insensitive pattern matching")
	g.modeFlags = [2]*bool{new(bool), new(bool)}
	fs.BoolVar(g.modeFlags[0], "regex", false, "treat the pattern as a regular expression")
	fs.BoolVar(g.modeFlags[1], "fixed-string", false, "treat the pattern as a literal string")
	fs.Var(&g.exclude, "exclude", "pattern to exclude from the walk (repeatable)")
	fs.StringVar(&g.extPattern, "ext", "", "restrict to file extensions matching this regular expression")

	fs.BoolVar(&g.types.files, "type-file", false, "match regular files")
	fs.BoolVar(&g.types.dirs, "type-dir", false, "match directories")
	fs.BoolVar(&g.types.symlinks, "type-symlink", false, "match symlinks")
	fs.BoolVar(&g.types.executables, "executable", false, "match only executable files")
	fs.BoolVar(&g.types.empty, "empty", false, "match only empty files")

	fs.IntVar(&g.verbosity, "v", 0, "log verbosity (0=warn, 1=info, 2=debug, 3=trace)")
}

func (g *globalFlags) walkerOptions(pattern string) walker.Options {
	opts := walker.Options{
		Base:             g.dir,
		MaxDepth:         g.maxDepth,
		Pattern:          pattern,
		Mode:             g.mode,
		Exclude:          g.exclude,
		ExtensionPattern: g.extPattern,
		Types: walker.FileTypes{
			Files:           g.types.files,
			Directories:     g.types.dirs,
			Symlinks:        g.types.symlinks,
			ExecutablesOnly: g.types.executables,
			EmptyOnly:       g.types.empty,
		},
	}
	switch {
	case g.caseSensitive:
		t := true
		opts.CaseSensitive = &t
	case g.ignoreCase:
		f := false
		opts.CaseSensitive = &f
	}
	return opts
}

type subcmd func(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error

var subcommands = map[string]subcmd{
	"list":        cmdList,
	"set":         cmdSet,
	"rm":          cmdRemove,
	"clear":       cmdClear,
	"search":      cmdSearch,
	"cp":          cmdCopy,
	"edit":        cmdEdit,
	"view":        cmdView,
	"merge":       cmdMerge,
	"clean-cache": cmdCleanCache,
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: wutag [global flags] <command> [args]\n\ncommands:\n")
	for name := range subcommands {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	g := &globalFlags{}
	fs := flag.NewFlagSet("wutag", flag.ContinueOnError)
	fs.Usage = usage
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *g.modeFlags[0] {
		g.mode = walker.ModeRegex
	} else if *g.modeFlags[1] {
		g.mode = walker.ModeFixedString
	} else {
		g.mode = walker.ModeGlob
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage()
		return 2
	}
	cmd, ok := subcommands[rest[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "wutag: unknown command %q\n", rest[0])
		usage()
		return 2
	}

	lvl := zerolog.WarnLevel
	switch {
	case g.verbosity >= 3:
		lvl = zerolog.TraceLevel
	case g.verbosity == 2:
		lvl = zerolog.DebugLevel
	case g.verbosity == 1:
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())
	ctx = zlog.ContextWithValues(ctx, "component", "wutag/cmd")

	ctx, done := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		done()
	}()

	path := g.registryPath
	if path == "" {
		path = config.RegistryPath()
	}

	var codec *encrypt.Codec
	var err error
	if g.gpgKeyring != "" {
		codec, err = encrypt.NewGpg(g.gpgKeyring)
	} else {
		codec = encrypt.NewNone()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wutag: %v\n", err)
		return 1
	}

	plainPath, err := codec.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wutag: %v\n", err)
		return 1
	}

	reg, err := registry.Open(ctx, plainPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wutag: %v\n", err)
		return 1
	}

	exit := 0
	cmdctx, cmdDone := context.WithCancel(ctx)
	var cmdErr error
	go func() {
		defer cmdDone()
		cmdErr = cmd(cmdctx, g, reg, rest[1:])
	}()

	select {
	case <-ctx.Done():
		exit = 1
	case <-cmdctx.Done():
		if cmdErr != nil {
			fmt.Fprintf(os.Stderr, "wutag: %v\n", cmdErr)
			var ue *usageError
			if errors.As(cmdErr, &ue) || errors.Is(cmdErr, flag.ErrHelp) {
				exit = 2
			} else {
				exit = 1
			}
		}
	}

	if err := reg.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "wutag: %v\n", err)
		exit = 1
	}
	if err := codec.Close(path, plainPath); err != nil {
		fmt.Fprintf(os.Stderr, "wutag: %v\n", err)
		exit = 1
	}
	return exit
}
