package engine

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// InitializeSchedules starts the ingress and cleanup cron jobs. The caller stops the returned scheduler.
func (serverHandler *ServerHandler) InitializeSchedules() (*cron.Cron, error) {
	serverConfig := serverHandler.ServerConfig
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if serverConfig.IngressInterval > 0 {
		// Run ingress job immediately at startup in a goroutine
		Logger.Info("Running ingress job at startup")
		go serverHandler.ingressJobFunc()

		var ingressJob cron.Job = cron.FuncJob(serverHandler.ingressJobFunc)
		ingressJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(ingressJob) // ensure we don't kick off another if old one is still running
		if _, err := c.AddJob(fmt.Sprintf("@every %dm", serverConfig.IngressInterval), ingressJob); err != nil {
			return nil, fmt.Errorf("failed to schedule ingress job: %w", err)
		}
		Logger.Info("Adding Ingress Job scheduler", "interval_minutes", serverConfig.IngressInterval)
	} else {
		Logger.Info("Ingress scheduling disabled", "interval_minutes", serverConfig.IngressInterval)
	}

	var cleanupJob cron.Job = cron.FuncJob(serverHandler.cleanupJobFunc)
	cleanupJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cleanupJob)
	if _, err := c.AddJob("@hourly", cleanupJob); err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	Logger.Info("Adding Cleanup Job scheduler", "retention_hours", serverConfig.JobRetentionHours)

	c.Start()
	return c, nil
}
