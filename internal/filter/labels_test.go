package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"salonbook/internal/models"
)

func TestServiceNames(t *testing.T) {
	assert.Equal(t, NoServiceLabel, ServiceNames(nil))
	assert.Equal(t, NoServiceLabel, ServiceNames([]models.Service{{Name: "  "}}))
	assert.Equal(t, "Cut, Color", ServiceNames([]models.Service{{Name: "Cut"}, {Name: ""}, {Name: "Color"}}))
}

func TestClientLabel(t *testing.T) {
	tests := []struct {
		name string
		ref  models.ClientRef
		want string
	}{
		{"manual name wins", models.ManualClient(" Rosa "), "Rosa"},
		{"blank manual falls back", models.ManualClient("  "), FallbackClientLabel},
		{"resolved client", models.ResolvedClient(models.Client{ID: "9", FirstName: "Eva", LastName: "Ruiz"}), "Eva Ruiz"},
		{"resolved without name", models.ResolvedClient(models.Client{ID: "9"}), FallbackClientLabel},
		{"absent", models.NoClient(), FallbackClientLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientLabel(tt.ref))
		})
	}
}

func TestStylistLabel(t *testing.T) {
	assert.Equal(t, "Ana Lopez", StylistLabel(models.ResolvedStylist(models.Stylist{ID: "1", FirstName: "Ana", LastName: "Lopez"})))
	assert.Equal(t, "7", StylistLabel(models.UnresolvedStylist(7)))
}
