// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package integrity

// trustAnchorPEM is the marketplace publishing key baked into the binary.
// There is no runtime-configurable trust root: rotating this key requires
// shipping a new application build.
const trustAnchorPEM = `-----BEGIN PUBLIC KEY-----
MIIBojANBgkqhkiG9w0BAQEFAAOCAY8AMIIBigKCAYEAoKDRcmHnUh5Ao5fnxUfv
nCIjJSfmXSq2nBwftsR0MeZuq+DPCUjzavVvpkQdsNXcUdOx5vILLDDuqko/GAJe
I105xwYjallCo6GQlrG7b5fkHl9aHveI0HgxelXuPmGriEzfR5QKjm9qM/p+IU+R
tbL6WgBRGUKfCyKHCzZWhkkuj20NPeW98TwwxgwbpJTyLWkTq1R2Zmuw+3Ou5lHH
KGcrmZzFZGCmcIm4CHlIlaSAzhPs1XglVFLAHtS63i88yfTeXT7McR4zLxwVHzMS
SpZAPMfIOoa06gsKtgK/xTvQU3jAmHlmUwRm23e+S+ftQDBcDUoSxVkKQCd3xC+M
1TW9GVVZPx2J9NnpvMChSwC8ukwzKR6qoFSXSpBTvUE3sYONRY/qYSnH4DDkMXFA
7r8MQdI47/qMhmfX60RDQCWPihDSMHWrt64FfvZIX6/gKEmrsbeqyaMuyvl7cr7Q
jUTdrxsguGBZLUp3kAFSXg13KHZ6DpL2gkM6eaQj8kWbAgMBAAE=
-----END PUBLIC KEY-----`
