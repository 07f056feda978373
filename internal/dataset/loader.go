package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Loader builds the routing dataset from the district PostGIS schema.
type Loader struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewLoader(db *pgxpool.Pool, log *zap.Logger) *Loader {
	return &Loader{db: db, log: log}
}

// Load reads stops, route patterns, trips, transfers, mobility vehicles and
// the district row, then validates and seals the dataset.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()

	d := &Dataset{
		Transfers: make(map[StopID][]Transfer),
		Tariffs:   DefaultTariffs(),
	}

	// District bounding box and zone grid size.
	err := l.db.QueryRow(ctx, `
		SELECT lat_min, lat_max, lon_min, lon_max, grid_size FROM district LIMIT 1
	`).Scan(&d.Box.LatMin, &d.Box.LatMax, &d.Box.LonMin, &d.Box.LonMax, &d.GridSize)
	if err != nil {
		return nil, fmt.Errorf("load district: %w", err)
	}

	// Stops. Dataset stop ids are dense positions; the db id maps onto them.
	dbToStop := make(map[int]StopID)
	rows, err := l.db.Query(ctx, `
		SELECT id, code, name, ST_X(location::geometry), ST_Y(location::geometry), kind
		FROM stops ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load stops: %w", err)
	}
	for rows.Next() {
		var s Stop
		var dbID int
		var kind string
		if err := rows.Scan(&dbID, &s.Code, &s.Name, &s.Lon, &s.Lat, &kind); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.ID = StopID(len(d.Stops))
		s.Kind = StopKind(kind)
		dbToStop[dbID] = s.ID
		d.Stops = append(d.Stops, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stops: %w", err)
	}

	// Route patterns: one Route per (line, direction) with its ordered stops.
	patRows, err := l.db.Query(ctx, `SELECT DISTINCT line_id, direction FROM route_stops ORDER BY line_id, direction`)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	var patterns [][2]int
	for patRows.Next() {
		var lid, dir int
		if err := patRows.Scan(&lid, &dir); err != nil {
			patRows.Close()
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, [2]int{lid, dir})
	}
	patRows.Close()

	for _, p := range patterns {
		lineID, dir := p[0], p[1]

		var label, mode string
		if err := l.db.QueryRow(ctx,
			`SELECT label, mode FROM lines WHERE id=$1`, lineID).Scan(&label, &mode); err != nil {
			l.log.Warn("skipping line", zap.Int("line_id", lineID), zap.Error(err))
			continue
		}

		stopRows, err := l.db.Query(ctx, `
			SELECT stop_id FROM route_stops
			WHERE line_id=$1 AND direction=$2 ORDER BY stop_sequence
		`, lineID, dir)
		if err != nil {
			return nil, fmt.Errorf("load route stops: %w", err)
		}
		var seq []StopID
		var dbSeq []int
		for stopRows.Next() {
			var sid int
			if err := stopRows.Scan(&sid); err != nil {
				stopRows.Close()
				return nil, fmt.Errorf("scan route stop: %w", err)
			}
			if rid, ok := dbToStop[sid]; ok {
				seq = append(seq, rid)
				dbSeq = append(dbSeq, sid)
			}
		}
		stopRows.Close()
		if len(seq) < 2 {
			continue
		}

		route := Route{
			ID:        RouteID(len(d.Routes)),
			Mode:      TransportMode(mode),
			Label:     label,
			Stops:     seq,
			Direction: fmt.Sprintf("%d", dir),
		}

		// Trips with real per-stop times, grouped by trip id, ordered by
		// stop sequence within each trip.
		tripRows, err := l.db.Query(ctx, `
			SELECT trip_id, arrival_sec, departure_sec FROM stop_times
			WHERE line_id=$1 AND direction=$2
			ORDER BY trip_id, stop_sequence
		`, lineID, dir)
		if err != nil {
			return nil, fmt.Errorf("load stop times: %w", err)
		}
		var cur *Trip
		var curID int32 = -1
		for tripRows.Next() {
			var tid int32
			var st StopTime
			if err := tripRows.Scan(&tid, &st.Arrival, &st.Departure); err != nil {
				tripRows.Close()
				return nil, fmt.Errorf("scan stop time: %w", err)
			}
			if tid != curID {
				if cur != nil && len(cur.StopTimes) == len(seq) {
					route.Trips = append(route.Trips, *cur)
				}
				cur = &Trip{ID: tid}
				curID = tid
			}
			cur.StopTimes = append(cur.StopTimes, st)
		}
		tripRows.Close()
		if cur != nil && len(cur.StopTimes) == len(seq) {
			route.Trips = append(route.Trips, *cur)
		}

		// A route with no loadable timetable stays as an empty route; the
		// search treats it as having no trips.
		d.Routes = append(d.Routes, route)
	}

	// Foot transfers with their precomputed walk times, as stored.
	trRows, err := l.db.Query(ctx, `
		SELECT from_stop_id, to_stop_id, walk_seconds FROM transfers
	`)
	if err != nil {
		return nil, fmt.Errorf("load transfers: %w", err)
	}
	transferCount := 0
	for trRows.Next() {
		var fromDB, toDB, walkSec int
		if err := trRows.Scan(&fromDB, &toDB, &walkSec); err != nil {
			trRows.Close()
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		from, ok1 := dbToStop[fromDB]
		to, ok2 := dbToStop[toDB]
		if ok1 && ok2 {
			d.Transfers[from] = append(d.Transfers[from], Transfer{ToStop: to, WalkSeconds: walkSec})
			transferCount++
		}
	}
	trRows.Close()

	// Mobility fleet: docked stations and virtual cells.
	vRows, err := l.db.Query(ctx, `
		SELECT id, ST_X(location::geometry), ST_Y(location::geometry), mode, capacity, unlock_fee, per_minute
		FROM mobility_vehicles
	`)
	if err != nil {
		return nil, fmt.Errorf("load mobility vehicles: %w", err)
	}
	for vRows.Next() {
		var v MobilityVehicle
		var mode string
		if err := vRows.Scan(&v.ID, &v.Lon, &v.Lat, &mode, &v.Capacity, &v.UnlockFee, &v.PerMinute); err != nil {
			vRows.Close()
			return nil, fmt.Errorf("scan mobility vehicle: %w", err)
		}
		v.Mode = MobilityMode(mode)
		d.Vehicles = append(d.Vehicles, v)
	}
	vRows.Close()

	// Tariff overrides, when the dataset ships them.
	l.loadTariffs(ctx, d)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.Seal()

	l.log.Info("routing dataset loaded",
		zap.Int("stops", len(d.Stops)),
		zap.Int("routes", len(d.Routes)),
		zap.Int("transfers", transferCount),
		zap.Int("vehicles", len(d.Vehicles)),
		zap.Duration("elapsed", time.Since(start)))
	return d, nil
}

func (l *Loader) loadTariffs(ctx context.Context, d *Dataset) {
	rows, err := l.db.Query(ctx, `SELECT mode, unlock_fee, per_minute FROM tariffs`)
	if err != nil {
		return // table absent: keep defaults
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var t ModeTariff
		if err := rows.Scan(&mode, &t.UnlockFee, &t.PerMinute); err != nil {
			continue
		}
		switch mode {
		case "transit":
			d.Tariffs.TransitFlat = t.UnlockFee
			d.Tariffs.HybridPerKm = t.PerMinute
		default:
			d.Tariffs.Mobility[MobilityMode(mode)] = t
		}
	}
}
