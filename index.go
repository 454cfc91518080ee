package geodata

import "github.com/andreiashu/geodata/prefixmap"

// recordOutput adds the country code/language pair encoded in a table's
// output name (countryCode_language) to idx. Recording a name twice leaves
// idx unchanged.
func recordOutput(idx *prefixmap.Index, outputName string) error {
	cc, language, err := splitOutputName(outputName)
	if err != nil {
		return err
	}
	idx.Add(cc, language)
	return nil
}
