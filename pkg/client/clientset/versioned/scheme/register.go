// Package scheme holds the runtime.Scheme and codecs the generated-style
// Rollout clientset needs to encode/decode requests, mirroring the
// "scheme" subpackage every client-go generated clientset carries.
package scheme

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"

	rolloutsv1alpha1 "github.com/kulta-io/kulta-rollouts/pkg/apis/rollouts/v1alpha1"
)

// Scheme is the registered types this clientset can encode/decode.
var Scheme = runtime.NewScheme()

// Codecs provides access to encoding and decoding for the scheme.
var Codecs = serializer.NewCodecFactory(Scheme)

// ParameterCodec handles conversion between query parameters used by the
// list and watch operations and structs holding them (metav1.ListOptions).
var ParameterCodec = runtime.NewParameterCodec(Scheme)

var localSchemeBuilder = runtime.SchemeBuilder{
	rolloutsv1alpha1.AddToScheme,
}

// AddToScheme applies all the stored functions to the scheme.
var AddToScheme = localSchemeBuilder.AddToScheme

func init() {
	if err := AddToScheme(Scheme); err != nil {
		panic(err)
	}
}
