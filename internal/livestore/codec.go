package livestore

import (
	"fmt"
	"strconv"

	"candlefeed/internal/model"
)

// Hash field names for the flat live-candle representation.
const (
	fieldBucketStart = "bucketStartMs"
	fieldOpen        = "open"
	fieldHigh        = "high"
	fieldLow         = "low"
	fieldClose       = "close"
	fieldVolume      = "volume"
	fieldTxCount     = "txCount"
)

// flatten converts a candle into the string-valued hash stored in Redis.
func flatten(c model.Candle) map[string]interface{} {
	return map[string]interface{}{
		fieldBucketStart: strconv.FormatInt(c.BucketStartMs, 10),
		fieldOpen:        formatPrice(c.Open),
		fieldHigh:        formatPrice(c.High),
		fieldLow:         formatPrice(c.Low),
		fieldClose:       formatPrice(c.Close),
		fieldVolume:      formatPrice(c.Volume),
		fieldTxCount:     strconv.FormatInt(c.TxCount, 10),
	}
}

// unflatten rebuilds a candle from the stored hash. mint and iv come from the
// key, not the hash.
func unflatten(mint string, iv model.Interval, fields map[string]string) (model.Candle, error) {
	c := model.Candle{Mint: mint, Interval: iv}

	var err error
	if c.BucketStartMs, err = strconv.ParseInt(fields[fieldBucketStart], 10, 64); err != nil {
		return model.Candle{}, fmt.Errorf("live candle %s: bad %s %q", Key(iv, mint), fieldBucketStart, fields[fieldBucketStart])
	}
	if c.TxCount, err = strconv.ParseInt(fields[fieldTxCount], 10, 64); err != nil {
		return model.Candle{}, fmt.Errorf("live candle %s: bad %s %q", Key(iv, mint), fieldTxCount, fields[fieldTxCount])
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{fieldOpen, &c.Open},
		{fieldHigh, &c.High},
		{fieldLow, &c.Low},
		{fieldClose, &c.Close},
		{fieldVolume, &c.Volume},
	} {
		v, err := strconv.ParseFloat(fields[f.name], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("live candle %s: bad %s %q", Key(iv, mint), f.name, fields[f.name])
		}
		*f.dst = v
	}
	return c, nil
}

func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
