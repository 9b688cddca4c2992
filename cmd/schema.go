package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/enricher"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/tabular"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the active field schema as YAML",
	Long:  "Prints the schema at schema.path, or the built-in default, in the format schema.path accepts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema, err := loadSchema()
		if err != nil {
			return err
		}
		return writeSchema(schema.Fields())
	},
}

var schemaSuggestFile string

var schemaSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Draft a schema from a file's column headers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows, err := tabular.ReadTable(schemaSuggestFile)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("schema suggest: %s has no data rows", schemaSuggestFile)
		}

		enr, err := enricher.New(ctx, cfg)
		if err != nil {
			return err
		}
		fields, usage, err := enr.SuggestSchema(ctx, rows[0].Headers)
		if err != nil {
			return eris.Wrap(err, "schema suggest")
		}
		zap.L().Info("schema drafted",
			zap.Int("fields", len(fields)),
			zap.Int64("input_tokens", usage.InputTokens),
			zap.Int64("output_tokens", usage.OutputTokens),
		)
		return writeSchema(fields)
	},
}

var schemaExplainOverwrite bool

var schemaExplainCmd = &cobra.Command{
	Use:   "explain [FIELD...]",
	Short: "Add user-facing explanations to schema fields",
	Long:  "Asks the model for a short explanation of each named field, or of every enabled field when none is named, and prints the schema with the explanation filled in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		schema, err := loadSchema()
		if err != nil {
			return err
		}
		enr, err := enricher.New(ctx, cfg)
		if err != nil {
			return err
		}
		fields, usage, err := explainFields(ctx, enr, schema.Fields(), args, schemaExplainOverwrite)
		if err != nil {
			return eris.Wrap(err, "schema explain")
		}
		zap.L().Info("schema explained",
			zap.Int("calls", usage.Calls),
			zap.Int64("input_tokens", usage.InputTokens),
			zap.Int64("output_tokens", usage.OutputTokens),
		)
		return writeSchema(fields)
	},
}

type fieldExplainer interface {
	ExplainField(ctx context.Context, f model.SchemaField) (string, cost.Usage, error)
}

// explainFields fills Explanation on the named fields, or on every enabled
// field when names is empty. Existing explanations are kept unless overwrite
// is set.
func explainFields(ctx context.Context, ex fieldExplainer, fields []model.SchemaField, names []string, overwrite bool) ([]model.SchemaField, cost.Usage, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = false
	}
	for _, f := range fields {
		if _, ok := want[f.Name]; ok {
			want[f.Name] = true
		}
	}
	for _, n := range names {
		if !want[n] {
			return nil, cost.Usage{}, eris.Errorf("unknown field %q", n)
		}
	}

	var total cost.Usage
	out := make([]model.SchemaField, len(fields))
	copy(out, fields)
	for i, f := range out {
		if len(names) > 0 {
			if _, ok := want[f.Name]; !ok {
				continue
			}
		} else if !f.Enabled {
			continue
		}
		if f.Explanation != "" && !overwrite {
			continue
		}
		text, usage, err := ex.ExplainField(ctx, f)
		total.Add(usage)
		if err != nil {
			return nil, total, eris.Wrapf(err, "explain %s", f.Name)
		}
		out[i].Explanation = text
	}
	return out, total, nil
}

func writeSchema(fields []model.SchemaField) error {
	out, err := model.MarshalSchemaYAML(fields)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, string(out))
	return err
}

func init() {
	schemaSuggestCmd.Flags().StringVar(&schemaSuggestFile, "file", "", "base or manufacturer file whose headers to describe (required)")
	_ = schemaSuggestCmd.MarkFlagRequired("file")
	schemaExplainCmd.Flags().BoolVar(&schemaExplainOverwrite, "overwrite", false, "replace explanations the schema already carries")
	schemaCmd.AddCommand(schemaSuggestCmd, schemaExplainCmd)
	rootCmd.AddCommand(schemaCmd)
}
