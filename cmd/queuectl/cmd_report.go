package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/responses"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Print an organization's ordered queue",
	RunE:  runQueue,
}

var slaCmd = &cobra.Command{
	Use:   "sla",
	Short: "Print an organization's SLA report",
	RunE:  runSLA,
}

func init() {
	for _, cmd := range []*cobra.Command{queueCmd, slaCmd} {
		cmd.Flags().String("org", "", "Organization ID")
		_ = cmd.MarkFlagRequired("org")
	}
	queueCmd.Flags().String("queue", "", "Only show one queue")
}

func runQueue(cmd *cobra.Command, args []string) error {
	_, db, _, err := environment(cmd)
	if err != nil {
		return err
	}
	defer database.Close(db)

	var filter queue.Filter
	if id, _ := cmd.Flags().GetString("queue"); id != "" {
		filter.QueueID = &id
	}

	service := readService(db)
	result, err := service.ViewFor(cmd.Context(), operator(cmd), filter)
	if err != nil {
		return err
	}
	return printJSON(cmd, responses.NewQueueResponse(result))
}

func runSLA(cmd *cobra.Command, args []string) error {
	cfg, db, _, err := environment(cmd)
	if err != nil {
		return err
	}
	defer database.Close(db)

	reports := sla.NewService(readService(db), sla.NewMonitor(cfg.SLAThreshold, cfg.SLAWarningRatio))
	report, err := reports.ReportFor(cmd.Context(), operator(cmd))
	if err != nil {
		return err
	}
	return printJSON(cmd, responses.NewSLAReportResponse(report))
}

func readService(db *gorm.DB) *queue.Service {
	return queue.NewService(
		conversationrepo.NewGormRepository(db),
		organizationrepo.NewGormRepository(db),
		agentrepo.NewGormRepository(db),
	)
}

// operator is an organization-wide caller for read-only commands.
func operator(cmd *cobra.Command) tenant.Caller {
	org, _ := cmd.Flags().GetString("org")
	return tenant.Caller{OrganizationID: org, AgentID: "queuectl", Role: tenant.RoleAdmin}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
