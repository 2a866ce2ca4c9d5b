package monitor

type CommonLabels struct {
	TenantName string
}

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
	CommonLabels
}

type DBQueryLabels struct {
	QueryType string
}

type SettlementLabels struct {
	EscrowBackend string
	Outcome       string
	CommonLabels
}

func (d SettlementLabels) ToMap() map[string]string {
	return map[string]string{
		"escrow_backend": d.EscrowBackend,
		"outcome":        d.Outcome,
		"tenant_name":    d.TenantName,
	}
}

type EscrowLabels struct {
	Operation string
	Backend   string
	Status    string
	CommonLabels
}

func (c EscrowLabels) ToMap() map[string]string {
	return map[string]string{
		"operation":   c.Operation,
		"backend":     c.Backend,
		"status":      c.Status,
		"tenant_name": c.TenantName,
	}
}

var EscrowLabelNames = []string{"operation", "backend", "status", "tenant_name"}
