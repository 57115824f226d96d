package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/igolaizola/tunepoll/pkg/cmd/batch"
	"github.com/igolaizola/tunepoll/pkg/cmd/export"
	"github.com/igolaizola/tunepoll/pkg/cmd/list"
	"github.com/igolaizola/tunepoll/pkg/cmd/migrate"
	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/cmd/setting"
	"github.com/igolaizola/tunepoll/pkg/cmd/status"
	"github.com/igolaizola/tunepoll/pkg/cmd/submit"
	"github.com/igolaizola/tunepoll/pkg/cmd/web"
	"github.com/igolaizola/tunepoll/pkg/task"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "TUNEPOLL"

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("tunepoll", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "tunepoll [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newSubmitCommand(),
			newStatusCommand(),
			newBatchCommand(),
			newListCommand(),
			newExportCommand(),
			newWebCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "tunepoll version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newCommand(cmd, usage, help string, fs *flag.FlagSet, exec func(ctx context.Context, args []string) error) *ffcli.Command {
	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("tunepoll %s %s", cmd, usage),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix(envPrefix),
		},
		ShortHelp: help,
		FlagSet:   fs,
		Exec:      exec,
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	return newCommand(cmd, "[flags]", "run database migrations", fs, func(ctx context.Context, args []string) error {
		return migrate.Run(ctx, cfg)
	})
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Service, "service", service.KeyService, "service name")
	fs.StringVar(&cfg.Account, "account", "default", "account name")
	fs.StringVar(&cfg.Value, "value", "", "value to set")
	fs.StringVar(&cfg.Type, "type", "key", "value type")
	fs.BoolVar(&cfg.List, "list", false, "list stored values (masked)")
	fs.BoolVar(&cfg.Delete, "delete", false, "delete the value instead of setting it")

	return newCommand(cmd, "[flags]", "store, delete or list api keys in the database", fs, func(ctx context.Context, args []string) error {
		return setting.Run(ctx, cfg)
	})
}

// serviceFlags registers the flags shared by every command that talks to
// the provider.
func serviceFlags(fs *flag.FlagSet, cfg *service.Config) {
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres), empty to run without database")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.RegistryType, "registry-type", "", "task registry type (memory, redis, db)")
	fs.StringVar(&cfg.RegistryConn, "registry-conn", "", "redis url for the redis registry")

	fs.StringVar(&cfg.Key, "key", "", "api key, read from the database when empty")
	fs.StringVar(&cfg.Account, "account", "default", "account of the stored api key")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "api base url")
	fs.StringVar(&cfg.Model, "model", "", "default model for generation tasks")
	fs.DurationVar(&cfg.Wait, "rate", 0, "minimum time between api calls (negative disables it)")

	fs.IntVar(&cfg.Attempts, "attempts", 3, "attempts for each status request")
	fs.DurationVar(&cfg.Backoff, "backoff", 500*time.Millisecond, "initial backoff between attempts")
	fs.DurationVar(&cfg.Timeout, "request-timeout", 20*time.Second, "timeout for each api request")
}

func kindUsage() string {
	var kinds []string
	for _, k := range task.Kinds {
		kinds = append(kinds, string(k))
	}
	return fmt.Sprintf("task kind (%s)", strings.Join(kinds, ", "))
}

func fsFloatPtr(fs *flag.FlagSet, p **float64, name, usage string) {
	fs.Func(name, usage, func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*p = &v
		return nil
	})
}

func newSubmitCommand() *ffcli.Command {
	cmd := "submit"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &submit.Config{}
	serviceFlags(fs, &cfg.Config)

	fs.StringVar(&cfg.Kind, "kind", string(task.Music), kindUsage())
	fs.BoolVar(&cfg.Wait, "wait", false, "wait until the task finishes")
	fs.DurationVar(&cfg.Interval, "interval", 10*time.Second, "interval between status requests when waiting")

	p := &cfg.Params
	fs.StringVar(&p.Prompt, "prompt", "", "prompt or lyrics")
	fs.StringVar(&p.Style, "style", "", "music style")
	fs.StringVar(&p.Title, "title", "", "song title")
	fs.StringVar(&p.NegativeTags, "negative-tags", "", "styles to avoid")
	fs.BoolVar(&p.CustomMode, "custom", false, "custom mode")
	fs.BoolVar(&p.Instrumental, "instrumental", false, "instrumental song")
	fs.StringVar(&p.Model, "task-model", "", "model for this task, overrides the default")
	fs.StringVar(&p.VocalGender, "vocal-gender", "", "vocal gender (m, f)")
	fsFloatPtr(fs, &p.StyleWeight, "style-weight", "style weight (0 to 1)")
	fs.StringVar(&p.TaskID, "task-id", "", "source task id")
	fs.StringVar(&p.AudioID, "audio-id", "", "source audio id")
	fsFloatPtr(fs, &p.ContinueAt, "continue-at", "second to continue the song at")
	fs.BoolVar(&p.DefaultParamFlag, "default-params", false, "extend with the parameters of the source song")
	fs.StringVar(&p.Author, "author", "", "author shown in the video")
	fs.StringVar(&p.DomainName, "domain-name", "", "domain shown in the video")

	return newCommand(cmd, "[flags]", "submit a generation task", fs, func(ctx context.Context, args []string) error {
		return submit.Run(ctx, cfg)
	})
}

func newStatusCommand() *ffcli.Command {
	cmd := "status"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &status.Config{}
	serviceFlags(fs, &cfg.Config)

	fs.StringVar(&cfg.Kind, "kind", string(task.Music), kindUsage())
	fs.StringVar(&cfg.TaskID, "task-id", "", "task id")
	fs.BoolVar(&cfg.Wait, "wait", false, "wait until the task finishes")
	fs.DurationVar(&cfg.Interval, "interval", 10*time.Second, "interval between status requests when waiting")

	return newCommand(cmd, "[flags]", "print the normalized status of a task", fs, func(ctx context.Context, args []string) error {
		if cfg.TaskID == "" && len(args) > 0 {
			cfg.TaskID = args[0]
		}
		return status.Run(ctx, cfg)
	})
}

func newBatchCommand() *ffcli.Command {
	cmd := "batch"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &batch.Config{}
	serviceFlags(fs, &cfg.Config)

	fs.StringVar(&cfg.Input, "input", "", "csv or json file with one task per row")
	fs.StringVar(&cfg.Output, "output", "", "csv or json file with the submitted task ids (stdout when empty)")
	fs.StringVar(&cfg.Kind, "kind", string(task.Music), "default "+kindUsage())
	fs.IntVar(&cfg.Limit, "limit", 0, "limit the number of rows (0 means no limit)")
	fs.IntVar(&cfg.Concurrency, "concurrency", 1, "number of concurrent submissions")

	return newCommand(cmd, "[flags]", "submit tasks from a csv or json file", fs, func(ctx context.Context, args []string) error {
		return batch.Run(ctx, cfg)
	})
}

func newListCommand() *ffcli.Command {
	cmd := "list"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &list.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Kind, "kind", "", "filter by "+kindUsage())
	fs.StringVar(&cfg.State, "state", "", "filter by state (PENDING, PROCESSING, TEXT_READY, FIRST_READY, SUCCESS, ERROR)")
	fs.IntVar(&cfg.Page, "page", 1, "page number")
	fs.IntVar(&cfg.Size, "size", 100, "page size")
	fs.StringVar(&cfg.Format, "format", "csv", "output format (csv, json)")
	fs.BoolVar(&cfg.Delete, "delete", false, "delete the listed tasks")

	return newCommand(cmd, "[flags]", "list the tasks stored in the database", fs, func(ctx context.Context, args []string) error {
		return list.Run(ctx, cfg)
	})
}

func newExportCommand() *ffcli.Command {
	cmd := "export"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &export.Config{}
	serviceFlags(fs, &cfg.Config)

	fs.StringVar(&cfg.FSType, "fs-type", "local", "fs type (local, s3, telegram)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3, token@chat for telegram")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.StringVar(&cfg.Kind, "kind", string(task.Music), kindUsage())
	fs.StringVar(&cfg.TaskID, "task-id", "", "task id")
	fs.DurationVar(&cfg.Interval, "interval", 10*time.Second, "interval between status requests")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "timeout for the process (0 means no timeout)")

	return newCommand(cmd, "[flags]", "wait for a task and store its files", fs, func(ctx context.Context, args []string) error {
		return export.Run(ctx, cfg)
	})
}

func newWebCommand() *ffcli.Command {
	cmd := "web"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}
	serviceFlags(fs, &cfg.Config)

	fs.StringVar(&cfg.Addr, "addr", ":1337", "address to listen on")
	fsMapVar(fs, &cfg.Credentials, "creds", nil, "credentials to use (semicolon separated) Example: user1:pass1;user2:pass2")

	return newCommand(cmd, "[flags]", "serve the submission and status api", fs, func(ctx context.Context, args []string) error {
		return web.Serve(ctx, cfg)
	})
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
