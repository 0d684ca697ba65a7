package routes

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/chargingprofile"
	"github.com/Ramsey-B/clover/internal/repositories/tariff"
	"github.com/Ramsey-B/clover/pkg/database"
)

// Services are what request handlers resolve from the dependency container.
type Services struct {
	Logger           ectologger.Logger
	DB               database.DB
	Tariffs          tariff.TariffRepository
	ChargingProfiles chargingprofile.ChargingProfileRepository
}

// NewContainer creates a dependency container with the given id and registers
// services in it. Container ids are process wide; calling it again with an id
// already in use replaces the services of that container.
func NewContainer(id string, services Services) (ectocontainer.DIContainer, error) {
	container := ectoinject.GetContainer(id)
	if container == nil {
		var err error
		if container, err = newContainer(id, services.Logger); err != nil {
			return nil, err
		}
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, services.Logger); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, services.DB); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[tariff.TariffRepository](container, services.Tariffs); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[chargingprofile.ChargingProfileRepository](container, services.ChargingProfiles); err != nil {
		return nil, err
	}
	return container, nil
}

func newContainer(id string, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	config := ectoinject.DefaultContainerConfig
	config.ID = id
	config.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.WARN,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			if ctx == nil {
				ctx = context.Background()
			}
			entry := logger.WithContext(ctx).WithField("container_id", id)
			if level == loglevel.WARN {
				entry.Warn(msg)
				return
			}
			entry.Debug(msg)
		},
	}
	return ectoinject.NewDIContainer(config)
}
