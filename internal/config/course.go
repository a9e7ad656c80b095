package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sandevgo/tutorbot/pkg/log"
)

type CourseAPIConfig struct {
	BaseURL string        `env:"COURSE_API_BASE_URL,required,notEmpty"`
	Token   string        `env:"COURSE_API_TOKEN"`
	Timeout time.Duration `env:"COURSE_API_TIMEOUT" envDefault:"10s"`
}

func NewCourseAPIConfig(ctx context.Context) *CourseAPIConfig {
	c := &CourseAPIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Course API config")
	}
	return c
}
