// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command line parsing and dispatch for thicode.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/logger"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdRegister
	CmdLogout
	CmdWhoami
	CmdResetPassword
	CmdConversations
	CmdAsk
	CmdChat
	CmdSettings
	CmdTheme
	CmdConfig
	CmdCache
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command name as typed by the user.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdRegister:
		return "register"
	case CmdLogout:
		return "logout"
	case CmdWhoami:
		return "whoami"
	case CmdResetPassword:
		return "reset-password"
	case CmdConversations:
		return "conversations"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdSettings:
		return "settings"
	case CmdTheme:
		return "theme"
	case CmdConfig:
		return "config"
	case CmdCache:
		return "cache"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool   // Output in JSON format
	Offline bool   // Read from the conversation cache only
	Model   string // Overrides chat.default_model
	URL     string // Overrides server.base_url

	// Subcommand is the first argument after the command, e.g. "list".
	Subcommand string

	// Raw args (remaining after the command and global flags)
	Raw []string

	// Name is what the user typed as the command, for error messages.
	Name string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// In returns the input stream for prompts.
func (a Args) In() io.Reader {
	if a.stdin != nil {
		return a.stdin
	}
	return os.Stdin
}

// Out returns the stream command output goes to.
func (a Args) Out() io.Writer {
	if a.stdout != nil {
		return a.stdout
	}
	return os.Stdout
}

// ErrOut returns the stream for diagnostics and prompts.
func (a Args) ErrOut() io.Writer {
	if a.stderr != nil {
		return a.stderr
	}
	return os.Stderr
}

const usageText = `thicode - terminal client for ThiCode chat

Usage:
  thicode                         Start the full-screen client (default)
  thicode login [-u user]         Log in (password is read without echo)
  thicode register                Create an account
  thicode logout                  End the session
  thicode whoami                  Show the logged in user

  thicode reset-password request EMAIL     Email a reset link
  thicode reset-password verify TOKEN      Check a reset token
  thicode reset-password confirm TOKEN     Set a new password

  thicode conversations [list]             List conversations (--archived, --all)
  thicode conversations show ID            Print a conversation
  thicode conversations new MESSAGE        Start a conversation and wait for the reply
  thicode conversations rename ID TITLE    Rename a conversation
  thicode conversations delete ID [-y]     Delete a conversation
  thicode conversations archive ID         Archive a conversation
  thicode conversations restore ID         Restore an archived conversation
  thicode conversations meta ID KEY=VALUE  Merge metadata into a conversation
  thicode conversations export ID [--format markdown|json] [--dir DIR] [--open]
                                           Export a conversation (stdout without --dir)

  thicode ask ID "message"        Send a message and wait for the reply
  thicode chat [ID]               Line-oriented chat session

  thicode settings [show]                  Show account preferences
  thicode settings set KEY VALUE           Change a preference
                                           (display_mode, default_model, language)
  thicode theme [dark|light|system|toggle] Show or change the local theme

  thicode config [show]           Show configuration
  thicode config get KEY          Print one value
  thicode config set KEY VALUE    Change a value
  thicode config path             Print the config file path
  thicode config reset [-y]       Restore the default configuration

  thicode cache [list]            List cached conversations
  thicode cache search QUERY      Search cached messages
  thicode cache clear             Empty the cache

  thicode version                 Print version information
  thicode help                    Show this help

Global flags:
  --json          Print results as JSON
  -q, --quiet     Less output
  -v, --verbose   Debug logging
  --url URL       Backend address (overrides server.base_url)
  --model NAME    AI model for new messages (overrides chat.default_model)
  --offline       Read conversations from the local cache only

Environment:
  THICODE_HOME, THICODE_URL, THICODE_MODEL, THICODE_THEME,
  THICODE_LOG_LEVEL, THICODE_NO_CACHE

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "thicode version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its
// arguments. Global flags may appear anywhere before a "--".
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	name := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Name = name
	parsedArgs.Raw = remaining
	if len(remaining) > 0 {
		parsedArgs.Subcommand = remaining[0]
	}

	switch name {
	case "tui":
		return CmdTUI, parsedArgs
	case "login":
		return CmdLogin, parsedArgs
	case "register", "signup":
		return CmdRegister, parsedArgs
	case "logout":
		return CmdLogout, parsedArgs
	case "whoami", "me":
		return CmdWhoami, parsedArgs
	case "reset-password", "reset":
		return CmdResetPassword, parsedArgs
	case "conversations", "conversation", "conv", "c":
		return CmdConversations, parsedArgs
	case "ask":
		return CmdAsk, parsedArgs
	case "chat":
		return CmdChat, parsedArgs
	case "settings", "prefs":
		return CmdSettings, parsedArgs
	case "theme":
		return CmdTheme, parsedArgs
	case "config":
		return CmdConfig, parsedArgs
	case "cache":
		return CmdCache, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--":
			remaining = append(remaining, args[i:]...)
			return remaining, parsedArgs
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--offline":
			parsedArgs.Offline = true
		case "--model", "--url":
			if i+1 < len(args) {
				i++
				if arg == "--model" {
					parsedArgs.Model = args[i]
				} else {
					parsedArgs.URL = args[i]
				}
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--url="):
				parsedArgs.URL = strings.TrimPrefix(arg, "--url=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// =============================================================================
// DISPATCH
// =============================================================================

type handlerFunc func(ctx context.Context, args Args) error

var handlers = map[Command]handlerFunc{
	CmdTUI:           HandleTUI,
	CmdLogin:         HandleLogin,
	CmdRegister:      HandleRegister,
	CmdLogout:        HandleLogout,
	CmdWhoami:        HandleWhoami,
	CmdResetPassword: HandleResetPassword,
	CmdConversations: HandleConversations,
	CmdAsk:           HandleAsk,
	CmdChat:          HandleChat,
	CmdSettings:      HandleSettings,
	CmdTheme:         HandleTheme,
	CmdConfig:        HandleConfig,
	CmdCache:         HandleCache,
	CmdVersion:       HandleVersion,
	CmdHelp:          HandleHelp,
}

// Run executes cmd and returns the process exit code. Errors are printed
// here, as JSON in --json mode.
func Run(cmd Command, args Args) int {
	flush := initLogging(args)
	defer flush()

	handler, ok := handlers[cmd]
	if !ok {
		err := NewValidationError("command", args.Name, "unknown command")
		DisplayError(args.ErrOut(), err, false)
		if hint := SuggestCommand(args.Name); hint != "" {
			fmt.Fprintf(args.ErrOut(), "Did you mean %s?\n", InfoStyle.Render("thicode "+hint))
		} else {
			fmt.Fprintln(args.ErrOut(), DimStyle.Render("Run `thicode help` for the list of commands."))
		}
		return ExitUsageError
	}

	logger.L().Debug("running command", zap.Stringer("command", cmd), zap.Strings("args", args.Raw))

	if err := handler(context.Background(), args); err != nil {
		logger.L().Warn("command failed", zap.Stringer("command", cmd), zap.Error(err))
		if args.JSON {
			_ = NewJSONErrorResponse(cmd.String(), err).PrintTo(args.Out())
		} else {
			DisplayError(args.ErrOut(), err, false)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

// initLogging starts the file logger. Logging problems never stop a
// command; they are reported once on stderr.
func initLogging(args Args) func() {
	cfg := loadConfig(args)
	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	path, err := cfg.LogPath()
	if err != nil {
		return func() {}
	}
	flush, err := logger.Init(level, path)
	if err != nil {
		fmt.Fprintf(args.ErrOut(), "%s %v\n", WarningStyle.Render("Warning:"), err)
	}
	return flush
}

// loadConfig returns the configuration with command line overrides applied.
// The result is a copy; saving it would persist the overrides.
func loadConfig(args Args) *config.Config {
	cfg := config.Global().Clone()
	if args.URL != "" {
		cfg.Server.BaseURL = args.URL
	}
	if args.Model != "" {
		cfg.Chat.DefaultModel = args.Model
	}
	return cfg
}

// =============================================================================
// SIMPLE COMMANDS
// =============================================================================

// HandleVersion handles the "version" command.
func HandleVersion(ctx context.Context, args Args) error {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		return NewJSONResponse("version", data).PrintTo(args.Out())
	}
	PrintVersion(args.Out())
	return nil
}

// HandleHelp handles the "help" command.
func HandleHelp(ctx context.Context, args Args) error {
	PrintUsage(args.Out())
	return nil
}
