package csvsource

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/integrations"
	"routeopt/internal/model"
)

func TestFetch(t *testing.T) {
	in := `lat,lng,demand,window_start,window_end
# depot
40.70,-74.00
40.72, -74.01, 3
40.69,-73.98,2,480,600
`
	locs, err := Adapter{}.Fetch(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.Location{
		{Lat: 40.70, Lng: -74.00},
		{Lat: 40.72, Lng: -74.01, Demand: 3},
		{Lat: 40.69, Lng: -73.98, Demand: 2, Window: []int{480, 600}},
	}, locs)
}

func TestFetch_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":       "",
		"header only": "lat,lng\n",
		"short row":   "40.7\n",
		"bad lng":     "40.7,west\n",
		"bad demand":  "40.7,-74,lots\n",
		"half window": "40.7,-74,1,480\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Adapter{}.Fetch(context.Background(), strings.NewReader(in))
			require.Error(t, err)
		})
	}
}

func TestFetch_Semicolon(t *testing.T) {
	locs, err := Adapter{Comma: ';'}.Fetch(context.Background(), strings.NewReader("1.5;2.5;4\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, locs[0].Demand)
}

func TestRequest(t *testing.T) {
	req, err := integrations.Request(context.Background(), Adapter{}, strings.NewReader("1,1\n2,2,5\n"), 3, 10)
	require.NoError(t, err)
	assert.Len(t, req.Locations, 2)
	assert.Equal(t, 0, *req.Depot)
	assert.Equal(t, 3, *req.NumVehicles)
	assert.Equal(t, 10, *req.VehicleCapacity)

	req, err = integrations.Request(context.Background(), Adapter{}, strings.NewReader("1,1\n"), 0, 0)
	require.NoError(t, err)
	assert.Nil(t, req.NumVehicles)
	assert.Nil(t, req.VehicleCapacity)
}
