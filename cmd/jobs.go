package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-plans/app/erp"
	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/app/notify"
)

var (
	notifyURLs    []string
	notifyEvent   string
	notifyTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch plans from the ERP once and print them normalized",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		client := erp.NewClient(cfg.ERP)
		normalizer := mapper.NewPlanNormalizer(cfg.Plans.SplitConcatenatedFeature)

		if !runJob("check", func() error { return checkERP(context.Background(), client, normalizer) }) {
			os.Exit(1)
		}
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send the plans webhook so sites drop their cached plans",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		if cfg.ERP.WebhookSecret == "" {
			logrus.Fatal("ERP_WEBHOOK_SECRET is required to sign the webhook")
		}
		svc := notify.NewHTTPService(cfg.ERP.WebhookSecret, notifyTimeout).WithEvent(notifyEvent)

		ok := runJob("notify", func() error { return notifySites(context.Background(), svc, notifyURLs) })
		if !ok {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringSliceVar(&notifyURLs, "url", []string{"http://localhost:8080"}, "Site base URL or full webhook URL (repeatable)")
	notifyCmd.Flags().StringVar(&notifyEvent, "event", notify.DefaultEvent, "Event name sent in the webhook body")
	notifyCmd.Flags().DurationVar(&notifyTimeout, "timeout", 10*time.Second, "Per-request timeout")
}

func checkERP(ctx context.Context, client *erp.Client, normalizer *mapper.PlanNormalizer) error {
	if !client.Configured() {
		return erp.ErrNotConfigured
	}
	logrus.WithField("url", client.PlansURL()).Info("Testing ERP connection")

	records, err := client.FetchPlans(ctx)
	if err != nil {
		return err
	}

	plans, recordErrs := normalizer.NormalizeAll(records)
	for _, recordErr := range recordErrs {
		logrus.WithError(recordErr).Warn("Skipping malformed plan record")
	}
	if len(records) > 0 && len(recordErrs) == len(records) {
		return fmt.Errorf("none of %d plan records could be normalized", len(records))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(mapper.PlansToResponse(plans)); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"records": len(records),
		"plans":   len(plans),
		"skipped": len(recordErrs),
	}).Info("ERP connection OK")
	return nil
}

func notifySites(ctx context.Context, svc notify.Service, urls []string) error {
	var failed []string
	for _, url := range urls {
		result := svc.NotifyPlansUpdated(ctx, webhookURL(url))
		if result.Type != notify.ResultTypeSuccess {
			failed = append(failed, result.URL)
		}
	}
	if len(failed) > 0 {
		return errors.New("webhook failed for " + strings.Join(failed, ", "))
	}
	return nil
}

// webhookURL appends the webhook route to a bare site URL.
func webhookURL(site string) string {
	site = strings.TrimRight(strings.TrimSpace(site), "/")
	if strings.HasSuffix(site, "/webhooks/plans") {
		return site
	}
	return site + "/webhooks/plans"
}

func runRefresher(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("job", name).WithField("interval", interval.String()).Info("Refresher started")
	runJob(name, func() error { return fn(ctx) })

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Info("Refresher stopped")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(ctx) })
		}
	}
}

func runJob(name string, fn func() error) bool {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return false
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Debug("job_completed")
	return true
}
