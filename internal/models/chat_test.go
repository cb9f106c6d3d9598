package models

import "testing"

func TestContextData_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  *ContextData
		want bool
	}{
		{"nil", nil, true},
		{"zero value", &ContextData{}, true},
		{"zero participation", &ContextData{Participation: &ParticipationStats{}}, true},
		{"has events", &ContextData{UpcomingEvents: []Event{{ID: "e1"}}}, false},
		{"has total only", &ContextData{Participation: &ParticipationStats{TotalParticipants: 3}}, false},
		{"has popular", &ContextData{PopularEvents: []PopularEvent{{EventID: "e1", ParticipantCount: 1}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
