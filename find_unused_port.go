package reservedport

import (
	"go.uber.org/zap"

	"github.com/mmr-tortoise/reserved-port/internal/model"
	"github.com/mmr-tortoise/reserved-port/internal/port"
)

// FindUnusedPort asks the OS for a port that is currently free on TCP and
// UDP. Unlike Random, the port is not recorded anywhere: two calls may
// return the same number.
func FindUnusedPort() (uint16, error) {
	finder := port.NewOSQueryFinder(port.NewScanner(), model.DefaultOSQueryAttempts, zap.L())

	p, ok := finder.FindPort()
	if !ok {
		return 0, model.NewError(model.KindPortsExhausted,
			"reservedport: the OS did not offer a port free on both TCP and UDP")
	}
	return p, nil
}
