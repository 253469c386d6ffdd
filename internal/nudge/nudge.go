// Package nudge posts a scheduled labeling-progress digest to Slack, so
// long sessions surface how much of the active stage is still undecided.
package nudge

import (
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"featlab/internal/domain"
	slacknotify "featlab/internal/integrations/slack"
	"featlab/internal/selection"
	"featlab/internal/session"
)

// StartDigestScheduler runs the progress digest on a standard 5-field cron
// expression (minute hour day-of-month month day-of-week). Empty schedule
// or missing notifier disables it.
func StartDigestScheduler(schedule string, sess *session.Session, notifier *slacknotify.Notifier) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Progress digest disabled (digest_cron not set)")
		return
	}
	if notifier == nil {
		log.Println("Progress digest disabled: Slack is not configured")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid digest_cron '%s': %v. Progress digest disabled", schedule, err)
		return
	}
	log.Printf("Progress digest scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next progress digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			postDigest(sess, notifier)
		}
	}()
}

func postDigest(sess *session.Session, notifier *slacknotify.Notifier) {
	stage := sess.Stage()
	var total, labeled int
	if stage == domain.StageCause {
		counts, err := sess.CauseCounts("")
		if err != nil {
			log.Printf("Progress digest error: %v", err)
			return
		}
		for _, n := range counts.Manual {
			labeled += n
		}
		for _, n := range counts.Auto {
			labeled += n
		}
		total = labeled + counts.Unsure
	} else {
		counts, err := sess.Counts("")
		if err != nil {
			log.Printf("Progress digest error: %v", err)
			return
		}
		labeled = labeledCount(counts)
		total = labeled + counts.Unsure
	}
	notifier.ProgressDigest(stage.String(), total, labeled)
}

func labeledCount(c selection.Counts) int {
	return c.Confirmed + c.Expanded + c.RejectedManual + c.RejectedAuto
}
