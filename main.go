package main

import (
	"log"
	"net/http"

	"featlab/internal/api"
	"featlab/internal/config"
	"featlab/internal/httpx"
	"featlab/internal/integrations/classifier"
	slacknotify "featlab/internal/integrations/slack"
	"featlab/internal/nudge"
	"featlab/internal/session"
	"featlab/internal/universe"
)

func main() {
	cfg := config.LoadConfig()
	httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

	db, err := universe.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init feature database: %v", err)
	}
	defer db.Close()

	cache := universe.NewCache(&universe.SQLiteLoader{DB: db})
	cl := classifier.New(cfg.ClassifierURL, cfg.ClassifierToken)
	notifier := slacknotify.New(cfg.SlackBotToken, cfg.SlackChannelID)

	sess := session.New(session.Config{
		Stages:                cfg.Stages,
		CauseCategories:       cfg.CauseCategories,
		Gating:                cfg.Gating,
		ShuffleSeed:           cfg.ShuffleSeed,
		ScoreMetric:           cfg.ScoreMetric,
		DefaultScoreThreshold: cfg.DefaultScoreThreshold,
	}, cache, cl, sessionNotifier(notifier))

	if err := sess.Start(); err != nil {
		log.Fatalf("Failed to start labeling session: %v", err)
	}

	nudge.StartDigestScheduler(cfg.DigestCron, sess, notifier)

	srv := api.NewServer(cfg, sess, cache)
	log.Printf("Starting feature labeling server on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// sessionNotifier keeps the session's notifier dependency nil when Slack is
// not configured. A typed nil *Notifier inside the interface would otherwise
// pass the session's nil check and panic on use.
func sessionNotifier(n *slacknotify.Notifier) session.Notifier {
	if n == nil {
		return nil
	}
	return n
}
