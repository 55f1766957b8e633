package lib

import (
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerInjectionAndJobRegistration(t *testing.T) {
	sched, err := gocron.NewScheduler()
	assert.Nil(t, err)
	NewScheduler(sched)

	got, err := GetScheduler()
	assert.Nil(t, err)
	assert.Equal(t, sched, got)

	id, err := CreateCronJob(func() {}, time.Hour)
	assert.Nil(t, err)
	assert.NotNil(t, id)
	assert.NotEmpty(t, *id)
	assert.Len(t, sched.Jobs(), 1)

	assert.Nil(t, sched.Shutdown())
}
