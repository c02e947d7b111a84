// Package datagen is a client for the synthetic data generation API.
//
// A Client exposes three groups of calls that share one configuration:
//
//   - Auth: register, login, token validation, listing and revocation
//   - Tabular: dataset generation in json, csv, parquet, arrow or excel, strategies,
//     cost analysis and row validation
//   - Text: instruction dataset generation, backend info, request validation and examples
//
// Columns are described with the Column builder:
//
//	req := datagen.DatasetGenerationRequest{
//	    NumRows: 100,
//	    Topic:   "customers",
//	    Columns: []datagen.ColumnDescription{
//	        datagen.Column.UUID("id").MustBuild(),
//	        datagen.Column.Int("age").Min(18).Max(90).MustBuild(),
//	        datagen.Column.Categorical("tier", "free", "pro").MustBuild(),
//	    },
//	}
//	res, err := client.Tabular.Generate(ctx, req, datagen.WithFormat(datagen.FormatCSV))
//
// Errors match one of ErrAuthentication, ErrValidation, ErrServer or ErrNetwork with
// errors.Is; *APIError carries the status code and server message.
package datagen
