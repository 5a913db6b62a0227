// Package ocr is the stable boundary of the OCR engine.
//
// Engines are referred to by opaque Handle values. Every call returns a
// Status instead of an error and never panics; results carry their own
// status and must be released with the matching Release function once the
// caller is done with them:
//
//	h := ocr.CreateEngine("models/det.json", "models/rec.json", "models/keys.txt")
//	if h == ocr.NullHandle {
//		// creation failed
//	}
//	defer ocr.DestroyEngine(h)
//
//	res := ocr.RecognizeSimple(h, "scan.png")
//	defer ocr.ReleaseSimpleResult(&res)
//	if res.Status == ocr.Success {
//		for _, text := range res.Texts {
//			fmt.Println(text)
//		}
//	}
//
// Results own their data. They stay valid after the engine that produced
// them is destroyed.
package ocr
