package pcdm_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPCDM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "pCDM Backend Suite")
}
