// Package geometry normalizes region geometry into a single projected
// coordinate reference system and caches planar areas, so that every
// downstream area ratio is computed in one consistent linear unit.
package geometry

import (
	"math"

	"github.com/tractwise/tractwise/internal/errors"
)

// GRS80 ellipsoid (NAD83 datum).
const (
	grs80A    = 6378137.0
	grs80InvF = 298.257222101
)

// usFootPerMeter converts meters to US survey feet (1200/3937 m per ft).
const usFootPerMeter = 3937.0 / 1200.0

// Projection converts between geographic coordinates (degrees,
// lon/lat) and planar coordinates in the system's linear unit.
// Coordinates where the projection is mathematically undefined come
// back as NaN; the normalizer turns those into a projection error.
type Projection interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
}

// System describes one coordinate reference system by EPSG code.
type System struct {
	Code       int
	Name       string
	Geographic bool
	Projection Projection // nil when Geographic
}

// Registry maps EPSG codes to known systems.
type Registry struct {
	systems map[int]System
}

// NewRegistry creates a registry with the built-in systems:
//
//	4326  WGS84 geographic
//	26985 NAD83 / Maryland (Lambert Conformal Conic, meters)
//	2248  NAD83 / Maryland (Lambert Conformal Conic, US survey feet)
//	26918 NAD83 / UTM zone 18N (Transverse Mercator, meters)
func NewRegistry() *Registry {
	r := &Registry{systems: make(map[int]System)}

	mdLambert := newLambertConformalConic(lambertParams{
		lat1:         39.45,
		lat2:         38.3,
		lat0:         37.0 + 40.0/60.0,
		lon0:         -77.0,
		falseEasting: 400000.0,
		unitsPerM:    1.0,
	})

	r.Register(System{Code: 4326, Name: "WGS 84", Geographic: true})
	r.Register(System{Code: 26985, Name: "NAD83 / Maryland", Projection: mdLambert})
	r.Register(System{Code: 2248, Name: "NAD83 / Maryland (ftUS)", Projection: newLambertConformalConic(lambertParams{
		lat1:         39.45,
		lat2:         38.3,
		lat0:         37.0 + 40.0/60.0,
		lon0:         -77.0,
		falseEasting: 400000.0,
		unitsPerM:    usFootPerMeter,
	})})
	r.Register(System{Code: 26918, Name: "NAD83 / UTM zone 18N", Projection: newTransverseMercator(transverseParams{
		lat0:         0,
		lon0:         -75.0,
		scale:        0.9996,
		falseEasting: 500000.0,
	})})

	return r
}

// Register adds or replaces a system.
func (r *Registry) Register(s System) {
	r.systems[s.Code] = s
}

// Lookup returns the system for an EPSG code, or a projection error
// if the code is unknown.
func (r *Registry) Lookup(code int) (System, error) {
	s, ok := r.systems[code]
	if !ok {
		return System{}, errors.Projectionf("unknown coordinate reference system EPSG:%d", code)
	}
	return s, nil
}

// lambertParams parameterizes a Lambert Conformal Conic (2SP)
// projection on GRS80. Angles in degrees, false origin in meters.
type lambertParams struct {
	lat1, lat2   float64 // standard parallels
	lat0, lon0   float64 // false origin
	falseEasting float64 // meters
	falseNorth   float64 // meters
	unitsPerM    float64 // output unit conversion (1 for meters)
}

// lambertConformalConic implements the standard two-parallel forward
// projection (Snyder 1987, eqs. 14-15 to 15-4).
type lambertConformalConic struct {
	p          lambertParams
	e          float64
	n, f, rho0 float64
}

func newLambertConformalConic(p lambertParams) *lambertConformalConic {
	flat := 1.0 / grs80InvF
	e2 := 2*flat - flat*flat
	e := math.Sqrt(e2)

	phi1 := rad(p.lat1)
	phi2 := rad(p.lat2)
	phi0 := rad(p.lat0)

	m1 := lccM(phi1, e)
	m2 := lccM(phi2, e)
	t0 := lccT(phi0, e)
	t1 := lccT(phi1, e)
	t2 := lccT(phi2, e)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))
	rho0 := grs80A * f * math.Pow(t0, n)

	return &lambertConformalConic{p: p, e: e, n: n, f: f, rho0: rho0}
}

// Forward projects lon/lat degrees to planar coordinates.
// The pole opposite the cone apex has no image; it maps to NaN.
func (l *lambertConformalConic) Forward(lon, lat float64) (x, y float64) {
	if (l.n > 0 && lat <= -90) || (l.n < 0 && lat >= 90) {
		return math.NaN(), math.NaN()
	}

	phi := rad(lat)
	theta := l.n * (rad(lon) - rad(l.p.lon0))

	t := lccT(phi, l.e)
	rho := grs80A * l.f * math.Pow(t, l.n)

	x = l.p.falseEasting + rho*math.Sin(theta)
	y = l.p.falseNorth + l.rho0 - rho*math.Cos(theta)

	if math.IsInf(rho, 0) {
		return math.NaN(), math.NaN()
	}
	return x * l.p.unitsPerM, y * l.p.unitsPerM
}

// Inverse projects planar coordinates back to lon/lat degrees
// (Snyder 1987, eqs. 15-5 to 15-11). The latitude series has no
// closed form; the fixed point converges in a handful of iterations.
func (l *lambertConformalConic) Inverse(x, y float64) (lon, lat float64) {
	x = x/l.p.unitsPerM - l.p.falseEasting
	y = y/l.p.unitsPerM - l.p.falseNorth

	dy := l.rho0 - y
	rho := math.Hypot(x, dy)
	theta := math.Atan2(x, dy)
	if l.n < 0 {
		rho = -rho
		theta = math.Atan2(-x, -dy)
	}

	lon = deg(theta/l.n + rad(l.p.lon0))

	t := math.Pow(rho/(grs80A*l.f), 1/l.n)
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := l.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), l.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return lon, deg(phi)
}

// lccM computes m(φ) = cosφ / sqrt(1 - e² sin²φ).
func lccM(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
}

// lccT computes t(φ) = tan(π/4 − φ/2) / [(1 − e sinφ)/(1 + e sinφ)]^(e/2).
func lccT(phi, e float64) float64 {
	s := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*s)/(1+e*s), e/2)
}

// transverseParams parameterizes a Transverse Mercator projection on
// GRS80. Angles in degrees, false origin in meters.
type transverseParams struct {
	lat0, lon0   float64
	scale        float64
	falseEasting float64
	falseNorth   float64
}

// transverseMercator implements the forward series expansion
// (Snyder 1987, eqs. 8-9 to 8-13).
type transverseMercator struct {
	p       transverseParams
	e2, ep2 float64
	m0      float64
}

func newTransverseMercator(p transverseParams) *transverseMercator {
	flat := 1.0 / grs80InvF
	e2 := 2*flat - flat*flat
	ep2 := e2 / (1 - e2)
	tm := &transverseMercator{p: p, e2: e2, ep2: ep2}
	tm.m0 = tm.meridianArc(rad(p.lat0))
	return tm
}

// Forward projects lon/lat degrees to planar meters.
func (t *transverseMercator) Forward(lon, lat float64) (x, y float64) {
	phi := rad(lat)
	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	nu := grs80A / math.Sqrt(1-t.e2*sinPhi*sinPhi)
	tt := tanPhi * tanPhi
	c := t.ep2 * cosPhi * cosPhi
	a := (rad(lon) - rad(t.p.lon0)) * cosPhi
	m := t.meridianArc(phi)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x = t.p.falseEasting + t.p.scale*nu*(a+
		(1-tt+c)*a3/6+
		(5-18*tt+tt*tt+72*c-58*t.ep2)*a5/120)
	y = t.p.falseNorth + t.p.scale*(m-t.m0+nu*tanPhi*(a2/2+
		(5-tt+9*c+4*c*c)*a4/24+
		(61-58*tt+tt*tt+600*c-330*t.ep2)*a6/720))
	return x, y
}

// Inverse projects planar meters back to lon/lat degrees using the
// footpoint-latitude series (Snyder 1987, eqs. 8-17 to 8-25).
func (t *transverseMercator) Inverse(x, y float64) (lon, lat float64) {
	e2 := t.e2
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	e1sq := e1 * e1

	m := t.m0 + (y-t.p.falseNorth)/t.p.scale
	mu := m / (grs80A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	phi1 := mu +
		(3*e1/2-27*e1*e1sq/32)*math.Sin(2*mu) +
		(21*e1sq/16-55*e1sq*e1sq/32)*math.Sin(4*mu) +
		(151*e1*e1sq/96)*math.Sin(6*mu) +
		(1097*e1sq*e1sq/512)*math.Sin(8*mu)

	sin1 := math.Sin(phi1)
	cos1 := math.Cos(phi1)
	tan1 := math.Tan(phi1)

	c1 := t.ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := grs80A / math.Sqrt(1-e2*sin1*sin1)
	r1 := grs80A * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := (x - t.p.falseEasting) / (n1 * t.p.scale)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tan1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*t.ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*t.ep2-3*c1*c1)*d6/720)
	lonRad := rad(t.p.lon0) + (d-
		(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*t.ep2+24*t1*t1)*d5/120)/cos1
	return deg(lonRad), deg(phi)
}

// meridianArc computes the ellipsoidal distance from the equator to φ.
func (t *transverseMercator) meridianArc(phi float64) float64 {
	e2 := t.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return grs80A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}

func deg(rad float64) float64 {
	return rad * 180 / math.Pi
}
