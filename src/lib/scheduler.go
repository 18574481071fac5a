package lib

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

var scheduler gocron.Scheduler

// NewScheduler replaces the scheduler instance (tests).
func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		logrus.Errorf("Error initializing Scheduler: %s", err.Error())
		return nil, err
	}
	scheduler = sched
	logrus.Infof("Jobs in queue: %d", len(sched.Jobs()))
	return sched, nil
}

// CreateCronJob schedules handler to run every duration.
func CreateCronJob(handler any, duration time.Duration, args ...any) (*string, error) {
	sched, err := GetScheduler()
	if err != nil {
		return nil, err
	}
	j, err := sched.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(handler, args...),
	)
	if err != nil {
		return nil, err
	}
	id := j.ID().String()
	return &id, nil
}
