package domain

import "errors"

// Taxonomía de errores del pipeline. Los fallos por mercado/ciclo se aíslan
// en el loop; solo ErrPersistence debe parar el proceso (la consistencia del
// Ledger ya no es de fiar). Un rechazo de riesgo NO es un error: es un
// RiskDecision con Accepted=false y su código de motivo.
var (
	// ErrIncompleteDebate: falta la opinión de algún rol en la ronda final.
	// Recuperable: se salta el mercado este ciclo.
	ErrIncompleteDebate = errors.New("debate incomplete: missing role opinion")

	// ErrDuplicatePosition: ya existe posición abierta para el mercado.
	// Violación de contrato que el Ledger corta como última línea de defensa.
	ErrDuplicatePosition = errors.New("open position already exists for market")

	// ErrVenueTimeout: el estado de la orden es desconocido. Antes de
	// reintentar hay que pasar por el check de idempotencia del gateway.
	ErrVenueTimeout = errors.New("venue timeout: order state unknown")

	// ErrVenueRejected: el venue rechazó la orden explícitamente.
	ErrVenueRejected = errors.New("venue rejected order")

	// ErrPersistence: fallo de almacenamiento. Fatal.
	ErrPersistence = errors.New("persistence failure")
)
