package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	for _, ok := range []string{"4006381333931", "7891000100103", "96385074", "036000291452", "17891000100100"} {
		assert.NoError(t, Validate(ok), ok)
	}
	for _, bad := range []string{"4006381333932", "12345", "40063813339A1", ""} {
		assert.Error(t, Validate(bad), bad)
	}
}

func TestToGTIN14(t *testing.T) {
	assert.Equal(t, "04006381333931", ToGTIN14("4006381333931"))
	assert.Equal(t, "00000096385074", ToGTIN14("96385074"))
}
