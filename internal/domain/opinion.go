package domain

// Role identifica la postura de un agente dentro del debate.
type Role string

const (
	RoleProponent  Role = "PROPONENT"  // argumenta a favor de YES
	RoleOpponent   Role = "OPPONENT"   // argumenta a favor de NO
	RoleChallenger Role = "CHALLENGER" // ataca los argumentos de ambos
	RoleArbiter    Role = "ARBITER"    // sintetiza el debate y decide
)

// DebateRoles son los roles requeridos en la ronda final, en orden de intervención.
var DebateRoles = [4]Role{RoleProponent, RoleOpponent, RoleChallenger, RoleArbiter}

// Opinion es la estimación de un agente en una ronda concreta.
// Inmutable una vez registrada.
type Opinion struct {
	Role        Role
	Probability float64 // [0,1], probabilidad de que el mercado resuelva YES
	Rationale   string
	Round       int // 1-indexed
}
