package session

import "fmt"

// Statistics counts device outcomes. Total always equals Success + Failure;
// every replicated device, and every watchdog timeout, adds exactly one.
type Statistics struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Failure  int `json:"failure"`
	Cycles   int `json:"cycles"`
	Timeouts int `json:"timeouts"`
}

func (s *Statistics) record(ok bool) {
	s.Total++
	if ok {
		s.Success++
	} else {
		s.Failure++
	}
}

// SuccessRate is the share of successful outcomes in percent
func (s Statistics) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) * 100 / float64(s.Total)
}

func (s Statistics) String() string {
	return fmt.Sprintf("success rate %.0f%% (%d/%d)", s.SuccessRate(), s.Success, s.Total)
}
