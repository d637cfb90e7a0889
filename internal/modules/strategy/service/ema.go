package service

type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *emaState) Update(price float64) {
	if e.warmup == 0 {
		e.value = price
		e.warmup = 1
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

func (e *emaState) Ready() bool    { return e.warmup >= e.period }
func (e *emaState) Value() float64 { return e.value }

// smaState: скользящее среднее по окну.
type smaState struct {
	period int
	buf    []float64
	sum    float64
}

func newSMA(period int) smaState {
	if period <= 1 {
		period = 1
	}
	return smaState{period: period, buf: make([]float64, 0, period)}
}

func (s *smaState) Update(price float64) {
	if len(s.buf) == s.period {
		s.sum -= s.buf[0]
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, price)
	s.sum += price
}

func (s *smaState) Ready() bool    { return len(s.buf) == s.period }
func (s *smaState) Value() float64 { return s.sum / float64(len(s.buf)) }
