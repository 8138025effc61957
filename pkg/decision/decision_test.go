package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

func TestAppend_GrowsUnderBound(t *testing.T) {
	var log []v1alpha1.Decision
	log = Append(log, v1alpha1.Decision{Action: v1alpha1.DecisionInitialize})
	log = Append(log, v1alpha1.Decision{Action: v1alpha1.DecisionStepAdvance})

	assert.Len(t, log, 2)
	assert.Equal(t, v1alpha1.DecisionInitialize, log[0].Action)
	assert.Equal(t, v1alpha1.DecisionStepAdvance, log[1].Action)
}

func TestAppend_TruncatesFromHead(t *testing.T) {
	var log []v1alpha1.Decision
	for i := 0; i < MaxEntries+10; i++ {
		log = Append(log, v1alpha1.Decision{Message: string(rune('a' + i%26))})
	}

	assert.Len(t, log, MaxEntries)
	assert.Equal(t, string(rune('a'+10%26)), log[0].Message)
}
