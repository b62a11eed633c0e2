package cli

import (
	"time"

	"github.com/spf13/cobra"

	"slopectl/internal/apperrors"
	"slopectl/internal/slope"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		slopePath string
		dest      string
		version   int
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a file from the Slope file manager",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v *int
			if cmd.Flags().Changed("version") {
				if version <= 0 {
					return apperrors.Validation("version", "--version must be positive")
				}
				v = &version
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return s.DownloadFile(cmd.Context(), slopePath, v, dest)
		},
	}
	cmd.Flags().StringVar(&slopePath, "path", "", "file path in Slope")
	cmd.Flags().StringVar(&dest, "out", "", "local destination (overwritten)")
	cmd.Flags().IntVar(&version, "version", 0, "file version (default latest)")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		req          slope.ReportRequest
		dest         string
		projectionID int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a workbook element and download it",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch req.Format {
			case slope.FormatExcel, slope.FormatCsv:
			default:
				return apperrors.Validation("format", "--format must be Excel or Csv")
			}
			if projectionID > 0 {
				req = req.ForProjection(projectionID)
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			cfg := a.reportWait()
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}
			return s.DownloadReport(cmd.Context(), req, dest, cfg)
		},
	}
	cmd.Flags().StringVar(&req.WorkbookID, "workbook", "", "workbook ID")
	cmd.Flags().StringVar(&req.ElementID, "element", "", "element ID within the workbook")
	cmd.Flags().StringVar(&req.Format, "format", slope.FormatExcel, "report format (Excel, Csv)")
	cmd.Flags().StringToStringVar(&req.Parameters, "param", nil, "workbook parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&projectionID, "projection", 0, "projection to report on (sets Projection-ID)")
	cmd.Flags().StringVar(&dest, "out", "", "local destination (overwritten)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum wait for generation (env SLOPE_REPORT_TIMEOUT)")
	_ = cmd.MarkFlagRequired("workbook")
	_ = cmd.MarkFlagRequired("element")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
