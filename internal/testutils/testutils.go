package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// SampleLogbookCSV is a trimmed ForeFlight export with aircraft, flights and totals tables
const SampleLogbookCSV = `ForeFlight Logbook Import,This row is required for importing into ForeFlight. Do not delete or modify.,,,
,,,,
Aircraft Table,,,,
AircraftID,TypeCode,Year,Make,Model
N12345,C172,1979,Cessna,172N
,,,,
Flights Table,,,,
Date,From,To,Route,Remarks
2024-01-05,KSFO,KLAX,SFO VOR OSI,Departed SFO runway 28L
2024-01-07,KLAX,KSFO,,
,,,,
Totals Table,,,,
Total,2.5,,,
`

// SampleCatalogCSV is a small facility catalog in the published column layout
const SampleCatalogCSV = `id,state,name,city,county,latitude,longitude,towered,longest_runway_ft,surface_category,type,sources,corroborated
KSFO,CA,San Francisco Intl,San Francisco,San Mateo,37.6188056,-122.3754167,yes,11870,paved,airport,faa;osm,true
KLAX,CA,Los Angeles Intl,Los Angeles,Los Angeles,33.9425,-118.4081,yes,12923,paved,airport,faa,true
KSAN,CA,San Diego Intl,San Diego,San Diego,32.7336,-117.1897,yes,9401,paved,airport,faa,true
KPAO,CA,Palo Alto,Palo Alto,Santa Clara,37.4611,-122.1150,yes,2443,paved,airport,faa,true
KHAF,CA,Half Moon Bay,Half Moon Bay,San Mateo,37.5134,-122.5011,no,5000,paved,airport,faa,true
L54,CA,Agua Dulce,Agua Dulce,Los Angeles,34.5044,-118.3131,no,4600,paved,airport,faa,false
O69,CA,Petaluma Muni,Petaluma,Sonoma,38.2578,-122.6056,no,3600,paved,airport,faa,true
KRNO,NV,Reno/Tahoe Intl,Reno,Washoe,39.4991,-119.7681,yes,11002,paved,airport,faa,true
`

// Flight builds a flight row
func Flight(date, from, to string, text ...string) types.FlightRow {
	return types.FlightRow{Date: date, From: from, To: to, TextFields: text}
}

// Facility builds a facility with a location
func Facility(id, state string, lat, lon float64) types.Facility {
	return types.Facility{ID: id, State: state, Name: id, Latitude: &lat, Longitude: &lon}
}

// MockLogbookImport creates a logbook import message for testing
func MockLogbookImport(pilotID string) *types.LogbookImport {
	return &types.LogbookImport{
		ID:         uuid.New().String(),
		PilotID:    pilotID,
		FileName:   fmt.Sprintf("%s.csv", pilotID),
		CSV:        SampleLogbookCSV,
		ReceivedAt: time.Now().UTC(),
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
