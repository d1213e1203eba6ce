package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/budget/rollup"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/metricspush"
	"github.com/smallbiznis/podbudget/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const integrityJob = "integrity_audit"

var (
	auditOrgID         string
	auditYear          int
	auditMonth         int
	auditFailOnFinding bool
)

var errAnomaliesFound = errors.New("integrity anomalies found")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Data quality jobs",
}

var auditIntegrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Report hierarchy anomalies for an organization",
	Long: `Run the budget rollup for one organization and print every integrity
anomaly it finds as JSON: dangling agency or seller references, budget rows
for missing entities and unassigned accounts.

Counts per anomaly kind are pushed to the configured Pushgateway or
remote-write endpoint when METRICS_PUSH_EXPORTER is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := snowflake.ParseString(auditOrgID)
		if err != nil || orgID == 0 {
			return errors.New("--org must be an organization id")
		}
		if auditYear == 0 {
			auditYear = time.Now().UTC().Year()
		}
		ctx := cmd.Context()
		return runOnce(ctx, func(p integrityParams) error {
			return runIntegrityAudit(ctx, p, orgID)
		},
			infraModules(),
			domainModules(),
		)
	},
}

func init() {
	auditIntegrityCmd.Flags().StringVar(&auditOrgID, "org", "", "Organization id")
	auditIntegrityCmd.Flags().IntVar(&auditYear, "year", 0, "Budget year (default: current year)")
	auditIntegrityCmd.Flags().IntVar(&auditMonth, "month", 0, "Restrict to one month (1-12)")
	auditIntegrityCmd.Flags().BoolVar(&auditFailOnFinding, "fail-on-anomaly", false, "Exit non-zero when anomalies are found")
	auditCmd.AddCommand(auditIntegrityCmd)
}

type integrityParams struct {
	fx.In

	Cfg          config.Config
	BudgetConfig *config.BudgetConfigHolder
	MetricsCfg   metrics.Config
	Log          *zap.Logger
	Orgs         orgdomain.Service
	Loader       *rollup.Loader
}

type integrityReport struct {
	OrgID     string                     `json:"orgId"`
	Year      int                        `json:"year"`
	Month     *int                       `json:"month"`
	Counts    map[rollup.AnomalyKind]int `json:"counts"`
	Anomalies []rollup.Anomaly           `json:"anomalies"`
}

func runIntegrityAudit(ctx context.Context, p integrityParams, orgID snowflake.ID) (err error) {
	log := p.Log.Named("audit.integrity")
	registry := prometheus.NewRegistry()
	jobMetrics, err := metrics.NewJobMetrics(registry, p.MetricsCfg)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		jobMetrics.Observe(integrityJob, time.Since(start), runErr(err))
		if pusher := metricspush.NewPusher(p.Cfg, log); pusher != nil {
			if pushErr := pusher.Push(ctx, registry); pushErr != nil {
				log.Warn("metrics push failed", zap.Error(pushErr))
			}
		}
	}()

	query, err := integrityQuery(p.BudgetConfig.Get(), orgID, auditYear, auditMonth)
	if err != nil {
		return err
	}
	org, err := p.Orgs.GetByID(ctx, orgID.String())
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}

	ctx = orgcontext.WithOrgID(ctx, int64(orgID))
	ctx = tenant.WithSchema(ctx, org.SchemaName)
	in, res, err := p.Loader.Run(ctx, query)
	if err != nil {
		return err
	}

	jobMetrics.AddProcessed(integrityJob, "advertiser", len(in.Advertisers))
	jobMetrics.AddProcessed(integrityJob, "agency", len(in.Agencies))
	jobMetrics.AddProcessed(integrityJob, "budget", len(in.Budgets))

	counts := res.AnomalyCounts()
	kinds := make([]string, 0, len(counts))
	for kind, count := range counts {
		jobMetrics.SetAnomalies(string(kind), count)
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	log.Info("integrity audit finished",
		zap.String("org_id", orgID.String()),
		zap.Int("anomalies", len(res.Anomalies)),
		zap.Strings("kinds", kinds),
	)

	anomalies := res.Anomalies
	if anomalies == nil {
		anomalies = []rollup.Anomaly{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(integrityReport{
		OrgID:     orgID.String(),
		Year:      res.Year,
		Month:     res.Month,
		Counts:    counts,
		Anomalies: anomalies,
	}); err != nil {
		return err
	}

	if auditFailOnFinding && len(res.Anomalies) > 0 {
		return errAnomaliesFound
	}
	return nil
}

// integrityQuery builds the rollup query for the audit flags. A zero month
// covers the whole year.
func integrityQuery(cfg config.BudgetConfig, orgID snowflake.ID, year, month int) (rollup.Query, error) {
	query := rollup.Query{OrgID: orgID, Year: year}
	if month != 0 {
		query.Month = &month
	}
	if err := budgetdomain.ValidatePeriod(cfg, query.Year, query.Month); err != nil {
		return rollup.Query{}, fmt.Errorf("--year/--month: %w", err)
	}
	return query, nil
}

// runErr keeps a requested non-zero exit out of the job error counter.
func runErr(err error) error {
	if errors.Is(err, errAnomaliesFound) {
		return nil
	}
	return err
}
