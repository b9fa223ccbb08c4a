//go:build !xvidcgo

package xvid

func vopData(b *StatsBlob) VOPData {
	return VOPData{
		General:       b.data.general,
		TimeBase:      b.data.timeBase,
		TimeIncrement: b.data.timeIncrement,
		QScaleStride:  b.data.qscaleStride,
		qscale:        b.data.qscale,
	}
}

func volData(b *StatsBlob) VOLData {
	vol := b.vol()
	return VOLData{
		General:   vol.general,
		Width:     vol.width,
		Height:    vol.height,
		PAR:       vol.par,
		PARWidth:  vol.parWidth,
		PARHeight: vol.parHeight,
	}
}
