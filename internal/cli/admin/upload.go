package admin

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/loader"
	"github.com/cloo-solutions/vocabtool/internal/storage"
)

// UploadCmd publishes a vocabulary source file to object storage, where
// servers configured with an s3:// source pick it up on their next reload.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> <s3://bucket/key>",
		Short: "Upload a vocabulary source to object storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasS3() {
				return fmt.Errorf("object storage not configured (set VOCAB_S3_ENDPOINT or VOCAB_S3_ACCESS_KEY_ID)")
			}

			loc, ok := storage.ParseURI(args[1])
			if !ok {
				return fmt.Errorf("invalid object URI %q (expected s3://bucket/key)", args[1])
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open source: %w", err)
			}
			defer f.Close()

			client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
				Endpoint:        cfg.S3Endpoint,
				Region:          cfg.S3Region,
				AccessKeyID:     cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
				Bucket:          cfg.S3Bucket,
				UsePathStyle:    true,
			})
			if err != nil {
				return fmt.Errorf("failed to create S3 client: %w", err)
			}
			if err := client.EnsureBucket(ctx, loc.Bucket); err != nil {
				return err
			}

			contentType := "text/csv"
			if loader.Delimiter(args[0]) == '\t' {
				contentType = "text/tab-separated-values"
			}
			if err := client.PutObject(ctx, loc, f, contentType); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to %s\n", args[0], args[1])
			return nil
		},
	}
}
