package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/datagen/internal/schemafile"
	"github.com/tensorplex-labs/datagen/pkg/datagen"
)

func credentialFlags(name string, args []string) (string, string, error) {
	fs := subFlags(name)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	return *email, *password, nil
}

func cmdRegister(ctx context.Context, e *env, args []string) error {
	email, password, err := credentialFlags("register", args)
	if err != nil {
		return err
	}
	user, err := e.client.Auth.Register(ctx, email, password)
	if err != nil {
		return err
	}
	return printJSON(e.out, user)
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	email, password, err := credentialFlags("login", args)
	if err != nil {
		return err
	}
	token, err := e.client.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return printJSON(e.out, token)
}

func cmdMe(ctx context.Context, e *env, _ []string) error {
	user, err := e.client.Auth.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(e.out, user)
}

func cmdTokens(ctx context.Context, e *env, args []string) error {
	fs := subFlags("tokens")
	revoked := fs.Bool("revoked", false, "include revoked tokens")
	expired := fs.Bool("expired", false, "include expired tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := e.client.Auth.ListTokens(ctx, datagen.ListTokensOptions{
		IncludeRevoked: *revoked,
		IncludeExpired: *expired,
	})
	if err != nil {
		return err
	}
	return printJSON(e.out, list)
}

func cmdRevoke(ctx context.Context, e *env, args []string) error {
	fs := subFlags("revoke")
	id := fs.String("id", "", "revoke the token with this id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		res datagen.RevokeResponse
		err error
	)
	switch {
	case *id != "":
		n, convErr := strconv.ParseInt(*id, 10, 64)
		if convErr != nil {
			return fmt.Errorf("%w: -id %q is not a number", errUsage, *id)
		}
		res, err = e.client.Auth.RevokeByID(ctx, n)
	case fs.NArg() == 1:
		res, err = e.client.Auth.Revoke(ctx, fs.Arg(0))
	default:
		return fmt.Errorf("%w: revoke takes -id or exactly one token", errUsage)
	}
	if err != nil {
		return err
	}
	return printJSON(e.out, res)
}

func cmdStrategies(ctx context.Context, e *env, _ []string) error {
	list, err := e.client.Tabular.Strategies(ctx)
	if err != nil {
		return err
	}
	return printJSON(e.out, list)
}

func loadTabular(name string, args []string) (*schemafile.TabularSpec, error) {
	fs := subFlags(name)
	specPath := fs.String("spec", "", "tabular job file (yaml or json)")
	format := fs.String("format", "", "output format, overrides the file")
	strategy := fs.String("strategy", "", "generation strategy, overrides the file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("spec", *specPath); err != nil {
		return nil, err
	}

	spec, err := schemafile.LoadTabular(*specPath)
	if err != nil {
		return nil, err
	}
	if *format != "" {
		spec.Format = *format
	}
	if *strategy != "" {
		spec.Strategy = *strategy
	}
	return spec, nil
}

func cmdGenerate(ctx context.Context, e *env, args []string) error {
	spec, err := loadTabular("generate", args)
	if err != nil {
		return err
	}
	req, err := spec.Request()
	if err != nil {
		return err
	}

	format := datagen.FormatJSON
	if spec.Format != "" {
		if format, err = datagen.ParseFormat(spec.Format); err != nil {
			return err
		}
	}

	res, err := e.client.Tabular.Generate(ctx, req,
		datagen.WithFormat(format),
		datagen.WithStrategy(spec.Strategy),
	)
	if err != nil {
		return err
	}

	n, err := res.WriteTo(e.out)
	if err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	log.Info().
		Str("topic", spec.Topic).
		Str("format", string(res.Format)).
		Int64("bytes", n).
		Msg("dataset written")
	return nil
}

func cmdAnalyze(ctx context.Context, e *env, args []string) error {
	spec, err := loadTabular("analyze", args)
	if err != nil {
		return err
	}
	req, err := spec.Request()
	if err != nil {
		return err
	}
	res, err := e.client.Tabular.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(e.out, res)
}

func cmdValidate(ctx context.Context, e *env, args []string) error {
	fs := subFlags("validate")
	rowsPath := fs.String("rows", "", "rows file (yaml or json)")
	specPath := fs.String("spec", "", "tabular job file whose columns to check against")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag("rows", *rowsPath); err != nil {
		return err
	}

	rf, err := schemafile.LoadRows(*rowsPath)
	if err != nil {
		return err
	}

	columnSpecs := rf.Columns
	if *specPath != "" {
		spec, err := schemafile.LoadTabular(*specPath)
		if err != nil {
			return err
		}
		columnSpecs = spec.Columns
	}
	if len(columnSpecs) == 0 {
		return fmt.Errorf("%w: no columns in %s and no -spec given", errUsage, *rowsPath)
	}

	columns := make([]datagen.ColumnDescription, 0, len(columnSpecs))
	for i, cs := range columnSpecs {
		col, err := cs.Column()
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		columns = append(columns, col)
	}

	report, err := e.client.Tabular.Validate(ctx, rf.Rows, columns)
	if err != nil {
		return err
	}
	if err := printJSON(e.out, report); err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		log.Warn().Int("invalid_rows", len(failed)).Msg("rows failed validation")
	}
	return nil
}

func loadText(name string, args []string) (datagen.TextDatasetGenerationRequest, error) {
	fs := subFlags(name)
	specPath := fs.String("spec", "", "text job file (yaml or json)")
	if err := fs.Parse(args); err != nil {
		return datagen.TextDatasetGenerationRequest{}, err
	}
	if err := requireFlag("spec", *specPath); err != nil {
		return datagen.TextDatasetGenerationRequest{}, err
	}
	spec, err := schemafile.LoadText(*specPath)
	if err != nil {
		return datagen.TextDatasetGenerationRequest{}, err
	}
	return spec.Request()
}

func cmdTextGenerate(ctx context.Context, e *env, args []string) error {
	req, err := loadText("text-generate", args)
	if err != nil {
		return err
	}
	ds, err := e.client.Text.Generate(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(e.out, ds)
}

func cmdTextInfo(ctx context.Context, e *env, _ []string) error {
	info, err := e.client.Text.Info(ctx)
	if err != nil {
		return err
	}
	return printJSON(e.out, info)
}

func cmdTextValidate(ctx context.Context, e *env, args []string) error {
	req, err := loadText("text-validate", args)
	if err != nil {
		return err
	}
	res, err := e.client.Text.Validate(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(e.out, res)
}

func cmdTextExamples(ctx context.Context, e *env, _ []string) error {
	ex, err := e.client.Text.Examples(ctx)
	if err != nil {
		return err
	}
	return printJSON(e.out, ex)
}
