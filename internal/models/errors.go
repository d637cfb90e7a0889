package models

import "github.com/pkg/errors"

var (
	// ErrConnectivity: брокер недоступен.
	ErrConnectivity = errors.New("broker connectivity")
	// ErrResolution: инструмент не резолвится или неоднозначен.
	ErrResolution = errors.New("instrument resolution")
	// ErrExecutionTimeout: вход не исполнился за отведённое время.
	ErrExecutionTimeout = errors.New("execution timeout")
	// ErrOcaDivergence: ноги OCA не пришли к паре Filled/Cancelled.
	ErrOcaDivergence = errors.New("oca divergence")
	// ErrAuditSink: не удалось записать аудит.
	ErrAuditSink = errors.New("audit sink")
)
