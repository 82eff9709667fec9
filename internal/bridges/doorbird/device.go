package doorbird

import (
	"context"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

// Device is the door station client the integration drives.
// *bha.Client satisfies it.
type Device interface {
	Host() string
	Username() string

	Ready(ctx context.Context) (bool, int, error)
	Info(ctx context.Context) (map[string]any, error)

	StartMonitoring(ctx context.Context, handler bha.MonitorHandler) error
	StopMonitoring() error
	IsMonitoring() bool

	LiveVideoURL() string
	LiveImageURL() string
	RTSPLiveVideoURL() string
	HTML5ViewerURL() string
	HistoryImageURL(index int, event string) string

	EnergizeRelay(ctx context.Context, relay string) error
	TurnLightOn(ctx context.Context) error
}

// DeviceFactory builds a Device from an entry's configuration.
type DeviceFactory func(cfg config.DeviceConfig) Device

// NewBHADevice is the default DeviceFactory.
func NewBHADevice(cfg config.DeviceConfig) Device {
	return bha.New(cfg.Host, cfg.Username, cfg.Password,
		bha.WithPort(cfg.Port),
		bha.WithSecure(cfg.SSL),
	)
}

var _ Device = (*bha.Client)(nil)
